package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/ipc"
	"spool/internal/job"
	"spool/internal/joblog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived jobs, newest first",
		Long: "Show jobs archived by `spool clear`. Reads through the daemon when it is\n" +
			"running and opens the history database directly otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, enabled, err := ctx.loadHistory(cmd, statuses, limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ipc.HistoryResponse{Enabled: enabled, Entries: entries})
			}
			out := cmd.OutOrStdout()
			if !enabled {
				fmt.Fprintln(out, "Job history is disabled")
				return nil
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "History is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					shortID(e.Job.ID),
					formatStatusLabel(e.Job.Status),
					e.Job.Preset,
					formatSeconds(e.Job.ElapsedSeconds),
					formatRatio(e.RealtimeRatio),
					formatRate(e.ReadMBps),
					formatDisplayTime(e.Job.CompletedAt),
					filepath.Base(e.Job.InputPath),
				})
			}
			fmt.Fprint(out, renderTable([]column{
				left("ID"), left("Status"), left("Preset"), right("Elapsed"), right("Speed"), right("Read"), left("Finished"), left("Input"),
			}, rows))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show at most this many entries")
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived jobs older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < time.Second {
				return errors.New("--older-than must be at least 1s")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PruneHistory(olderThan)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Enabled {
					fmt.Fprintln(out, "Job history is disabled")
					return nil
				}
				fmt.Fprintf(out, "Pruned %d history entries older than %s\n", resp.Removed, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete entries archived longer ago than this")
	return cmd
}

func (c *commandContext) loadHistory(cmd *cobra.Command, statuses []string, limit int) ([]api.HistoryEntry, bool, error) {
	if client, err := c.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.History(ipc.HistoryRequest{Statuses: statuses, Limit: limit})
		if err != nil {
			return nil, false, err
		}
		return resp.Entries, resp.Enabled, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	if !cfg.History.Enabled {
		return nil, false, nil
	}
	filter := joblog.Filter{Limit: limit}
	for _, value := range statuses {
		status, ok := job.ParseStatus(value)
		if !ok {
			return nil, true, fmt.Errorf("unknown status %q", value)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	store, err := joblog.Open(cfg)
	if err != nil {
		return nil, true, err
	}
	defer store.Close()
	records, err := store.History(cmd.Context(), filter)
	if err != nil {
		return nil, true, err
	}
	entries := make([]api.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, api.FromHistoryEntry(r))
	}
	return entries, true, nil
}
