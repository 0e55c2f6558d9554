package api

import (
	"strings"
	"time"

	"spool/internal/deps"
	"spool/internal/job"
	"spool/internal/joblog"
	"spool/internal/preset"
	"spool/internal/scheduler"
	"spool/internal/workers"
)

const bytesPerMiB = 1024 * 1024

// FromJob converts a job snapshot. now is used for the elapsed time of
// running jobs.
func FromJob(j job.Job, now time.Time) Job {
	out := Job{
		ID:             string(j.ID),
		InputPath:      j.InputPath,
		OutputPath:     j.OutputPath,
		Preset:         j.Preset,
		Engine:         string(j.Encode.Engine),
		Priority:       j.Priority.String(),
		Status:         string(j.Status),
		Progress:       j.Progress,
		SourceDuration: j.SourceDurationSeconds,
		InputBytes:     j.InputBytes,
		OutputBytes:    j.OutputBytes,
		ElapsedSeconds: j.Elapsed(now).Seconds(),
		WorkerID:       j.WorkerID,
		Error:          j.Error,
		FailureKind:    j.FailureKind,
		CancelReason:   j.CancelReason,
		CreatedAt:      formatTime(j.CreatedAt),
		StartedAt:      formatTimePtr(j.StartedAt),
		CompletedAt:    formatTimePtr(j.CompletedAt),
	}
	if j.FPS != nil {
		fps := *j.FPS
		out.FPS = &fps
	}
	if j.ETA != nil {
		eta := j.ETA.Seconds()
		out.ETASeconds = &eta
	}
	return out
}

// FromJobs converts a slice of job snapshots.
func FromJobs(jobs []job.Job, now time.Time) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJob(j, now))
	}
	return out
}

// FromStats converts scheduler stats.
func FromStats(s scheduler.Stats) Stats {
	return Stats{
		Total:          s.Total,
		Pending:        s.Pending,
		Running:        s.Running,
		Completed:      s.Completed,
		Failed:         s.Failed,
		Cancelled:      s.Cancelled,
		ActiveWorkers:  s.ActiveWorkers,
		WorkersRunning: s.WorkersRunning,
	}
}

// FromWorkerStatus converts a pool snapshot.
func FromWorkerStatus(s workers.Status) WorkerStatus {
	out := WorkerStatus{
		Running:   s.Running,
		Draining:  s.Draining,
		Size:      s.Size,
		Active:    s.Active,
		StartedAt: formatTimePtr(s.StartedAt),
	}
	for _, w := range s.Workers {
		out.Workers = append(out.Workers, WorkerSlot{ID: w.ID, JobID: string(w.JobID)})
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromHistoryEntry converts an archived job. The realtime ratio is source
// duration over wall time; read and write rates are input and output MiB per
// second of wall time. Each is omitted when its inputs are unknown.
func FromHistoryEntry(e joblog.Entry) HistoryEntry {
	out := HistoryEntry{
		Job:        FromJob(e.Job, e.RecordedAt),
		RecordedAt: formatTime(e.RecordedAt),
	}
	if e.Job.Status != job.StatusCompleted || out.Job.ElapsedSeconds <= 0 {
		return out
	}
	elapsed := out.Job.ElapsedSeconds
	if e.Job.SourceDurationSeconds > 0 {
		ratio := e.Job.SourceDurationSeconds / elapsed
		out.RealtimeRatio = &ratio
	}
	out.ReadMBps = perSecond(e.Job.InputBytes, elapsed)
	out.WriteMBps = perSecond(e.Job.OutputBytes, elapsed)
	return out
}

func perSecond(bytes int64, seconds float64) *float64 {
	if bytes <= 0 {
		return nil
	}
	rate := float64(bytes) / bytesPerMiB / seconds
	return &rate
}

// FromPreset converts a catalog entry.
func FromPreset(p preset.Preset) Preset {
	return Preset{
		Name:        p.Name,
		Description: p.Description,
		Engine:      string(p.Config.Engine),
		VideoCodec:  string(p.Config.VideoCodec),
		AudioCodec:  string(p.Config.AudioCodec),
		Container:   string(p.Config.Container),
		Extensions:  strings.Join(p.Config.Extensions(), ", "),
	}
}
