package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"spool/internal/api"
	"spool/internal/job"
)

var titleCaser = cases.Title(language.Und)

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func jobStatusKind(status string) statusKind {
	switch job.Status(status) {
	case job.StatusCompleted:
		return statusOK
	case job.StatusFailed:
		return statusError
	case job.StatusCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func shortID(id string) string {
	return job.ID(id).Short()
}

func formatProgress(j api.Job) string {
	switch job.Status(j.Status) {
	case job.StatusPending:
		if j.QueuePosition > 0 {
			return "#" + strconv.Itoa(j.QueuePosition)
		}
		return "-"
	case job.StatusCompleted:
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", j.Progress)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func formatETA(j api.Job) string {
	if j.ETASeconds == nil || job.Status(j.Status) != job.StatusRunning {
		return "-"
	}
	return formatSeconds(*j.ETASeconds)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func formatRatio(ratio *float64) string {
	if ratio == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fx", *ratio)
}

func formatRate(rate *float64) string {
	if rate == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f MB/s", *rate)
}

func formatMiB(size int64) string {
	return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
}

func buildJobListRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			shortID(j.ID),
			formatStatusLabel(j.Status),
			j.Priority,
			j.Preset,
			formatProgress(j),
			formatETA(j),
			filepath.Base(j.InputPath),
		})
	}
	return rows
}

func jobListColumns() []column {
	return []column{left("ID"), left("Status"), left("Priority"), left("Preset"), right("Progress"), right("ETA"), left("Input")}
}

func buildCountRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(counts[key])})
	}
	return rows
}

func statsRows(stats api.Stats) [][]string {
	return [][]string{
		{formatStatusLabel(string(job.StatusPending)), strconv.Itoa(stats.Pending)},
		{formatStatusLabel(string(job.StatusRunning)), strconv.Itoa(stats.Running)},
		{formatStatusLabel(string(job.StatusCompleted)), strconv.Itoa(stats.Completed)},
		{formatStatusLabel(string(job.StatusFailed)), strconv.Itoa(stats.Failed)},
		{formatStatusLabel(string(job.StatusCancelled)), strconv.Itoa(stats.Cancelled)},
		{"Total", strconv.Itoa(stats.Total)},
	}
}

// jobDetailLines renders the fields of one job as label/value lines.
func jobDetailLines(j api.Job) [][2]string {
	lines := [][2]string{
		{"ID", j.ID},
		{"Status", formatStatusLabel(j.Status)},
		{"Priority", j.Priority},
		{"Preset", j.Preset + " (" + j.Engine + ")"},
		{"Input", j.InputPath},
		{"Output", j.OutputPath},
		{"Progress", formatProgress(j)},
	}
	if j.FPS != nil {
		lines = append(lines, [2]string{"FPS", fmt.Sprintf("%.1f", *j.FPS)})
	}
	if eta := formatETA(j); eta != "-" {
		lines = append(lines, [2]string{"ETA", eta})
	}
	if j.SourceDuration > 0 {
		lines = append(lines, [2]string{"Source length", formatSeconds(j.SourceDuration)})
	}
	lines = append(lines, [2]string{"Elapsed", formatSeconds(j.ElapsedSeconds)})
	if j.InputBytes > 0 {
		lines = append(lines, [2]string{"Input size", formatMiB(j.InputBytes)})
	}
	if j.OutputBytes > 0 {
		lines = append(lines, [2]string{"Output size", formatMiB(j.OutputBytes)})
	}
	if j.WorkerID > 0 {
		lines = append(lines, [2]string{"Worker", strconv.Itoa(j.WorkerID)})
	}
	if j.Error != "" {
		lines = append(lines, [2]string{"Error", j.Error})
	}
	if j.FailureKind != "" {
		lines = append(lines, [2]string{"Failure kind", j.FailureKind})
	}
	if j.CancelReason != "" {
		lines = append(lines, [2]string{"Cancel reason", j.CancelReason})
	}
	lines = append(lines,
		[2]string{"Created", formatDisplayTime(j.CreatedAt)},
		[2]string{"Started", formatDisplayTime(j.StartedAt)},
		[2]string{"Completed", formatDisplayTime(j.CompletedAt)},
	)
	return lines
}
