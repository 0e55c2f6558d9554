package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spool/internal/ipc"
	"spool/internal/preset"
	"spool/internal/scheduler"
)

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSubmitCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newCancelCommand(ctx),
		newClearCommand(ctx),
		newStatsCommand(ctx),
	}
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var presetName string
	var priority string
	var overrides preset.Overrides
	var allAudio bool

	cmd := &cobra.Command{
		Use:   "submit <input> <output> [<input> <output>...]",
		Short: "Queue one or more transcode jobs",
		Long: "Queue transcode jobs. Pass input/output pairs to submit several jobs at once;\n" +
			"either every job is queued or none are.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return errors.New("expected input/output path pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("all-audio") {
				overrides.MapAllAudio = &allAudio
			}
			req := ipc.SubmitRequest{}
			for i := 0; i < len(args); i += 2 {
				req.Requests = append(req.Requests, ipc.JobRequest{
					InputPath:  args[i],
					OutputPath: args[i+1],
					Preset:     presetName,
					Priority:   priority,
					Overrides:  overrides,
				})
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				for _, j := range resp.Jobs {
					fmt.Fprintf(out, "Queued %s  %s -> %s (%s, %s priority, position %d)\n",
						shortID(j.ID), j.InputPath, j.OutputPath, j.Preset, j.Priority, j.QueuePosition)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&presetName, "preset", "p", "", fmt.Sprintf("Preset name (default %q)", preset.DefaultPreset))
	cmd.Flags().StringVar(&priority, "priority", "normal", "Priority: low, normal, high, urgent")
	cmd.Flags().StringVar(&overrides.VideoBitrate, "video-bitrate", "", "Override the video bitrate (e.g. 8M)")
	cmd.Flags().StringVar(&overrides.AudioBitrate, "audio-bitrate", "", "Override the audio bitrate (e.g. 192k)")
	cmd.Flags().IntVar(&overrides.SampleRate, "sample-rate", 0, "Override the audio sample rate in Hz")
	cmd.Flags().StringVar(&overrides.Resolution, "resolution", "", "Scale to WIDTHxHEIGHT")
	cmd.Flags().StringVar(&overrides.FrameRate, "frame-rate", "", "Output frame rate (e.g. 25 or 30000/1001)")
	cmd.Flags().StringVar(&overrides.LUTPath, "lut", "", "Apply a 3D LUT file")
	cmd.Flags().BoolVar(&allAudio, "all-audio", false, "Map every audio stream instead of the first")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs held by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(ipc.ListRequest{Statuses: statuses, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobListColumns(), buildJobListRows(resp.Jobs)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many jobs")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Long:  "Show one job in detail. Live jobs accept an id prefix; archived jobs need the full id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Get(args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if resp.Archived {
					fmt.Fprintln(out, "(from job history)")
				}
				for _, line := range jobDetailLines(resp.Job) {
					value := line[1]
					if line[0] == "Status" && colorize {
						value = paint(value, statusKindColor(jobStatusKind(resp.Job.Status)))
					}
					fmt.Fprintf(out, "%-14s %s\n", line[0]+":", value)
				}
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var wait int

	cmd := &cobra.Command{
		Use:   "cancel <id> [<id>...]",
		Short: "Cancel pending or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				results := make([]*ipc.CancelResponse, 0, len(args))
				var failed []string
				out := cmd.OutOrStdout()
				for _, id := range args {
					resp, err := client.Cancel(ipc.CancelRequest{ID: id, WaitSeconds: wait})
					if err != nil {
						failed = append(failed, fmt.Sprintf("%s: %v", id, err))
						continue
					}
					results = append(results, resp)
					if !ctx.jsonOutput() {
						fmt.Fprintf(out, "%s %s\n", shortID(resp.Job.ID), describeCancel(resp))
					}
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				}
				if len(failed) > 0 {
					return fmt.Errorf("cancel failed for %s", strings.Join(failed, "; "))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&wait, "wait", 0, "Seconds to wait for a running job to stop (default 30)")
	return cmd
}

func describeCancel(resp *ipc.CancelResponse) string {
	switch scheduler.CancelOutcome(resp.Outcome) {
	case scheduler.CancelledPending:
		return "cancelled before it started"
	case scheduler.CancelledRunning:
		return "stopped and cancelled"
	case scheduler.AlreadyFinished:
		return "already " + strings.ToLower(formatStatusLabel(resp.Job.Status))
	default:
		return resp.Outcome
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs and archive them to history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearCompleted()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				switch resp.Removed {
				case 0:
					fmt.Fprintln(out, "No finished jobs to clear")
				case 1:
					fmt.Fprintln(out, "Cleared 1 finished job")
				default:
					fmt.Fprintf(out, "Cleared %d finished jobs\n", resp.Removed)
				}
				if resp.ArchiveError != "" {
					return fmt.Errorf("jobs were cleared but not archived: %s", resp.ArchiveError)
				}
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stats()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]column{left("Status"), right("Jobs")}, statsRows(resp.Stats)))
				fmt.Fprintf(out, "Workers running: %s (%d active)\n", yesNo(resp.Stats.WorkersRunning), resp.Stats.ActiveWorkers)
				return nil
			})
		},
	}
}
