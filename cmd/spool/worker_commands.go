package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/ipc"
)

func newWorkersCommand(ctx *commandContext) *cobra.Command {
	workersCmd := &cobra.Command{
		Use:   "workers",
		Short: "Control the worker pool",
	}
	workersCmd.AddCommand(newWorkersStartCommand(ctx))
	workersCmd.AddCommand(newWorkersStopCommand(ctx))
	workersCmd.AddCommand(newWorkersStatusCommand(ctx))
	workersCmd.AddCommand(newWorkersResizeCommand(ctx))
	return workersCmd
}

func newWorkersStartCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start claiming pending jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartWorkers(count)
				if err != nil {
					return err
				}
				return printWorkers(cmd, ctx, resp.Workers, fmt.Sprintf("Started %d workers", resp.Workers.Size))
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of workers (default from config)")
	return cmd
}

func newWorkersStopCommand(ctx *commandContext) *cobra.Command {
	var drain bool
	var timeout int
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker pool",
		Long: "Stop the worker pool. Running jobs are cancelled unless --drain is given,\n" +
			"in which case they finish first. Pending jobs stay queued either way.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopWorkers(ipc.StopWorkersRequest{Drain: drain, TimeoutSeconds: timeout})
				if err != nil {
					return err
				}
				message := "Workers stopped"
				if drain {
					message = "Workers drained and stopped"
				}
				return printWorkers(cmd, ctx, resp.Workers, message)
			})
		},
	}
	cmd.Flags().BoolVar(&drain, "drain", false, "Let running jobs finish before stopping")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Seconds to wait when draining (default from config)")
	return cmd
}

func newWorkersStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what each worker is doing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkerStatus()
				if err != nil {
					return err
				}
				return printWorkers(cmd, ctx, resp.Workers, "")
			})
		},
	}
}

func newWorkersResizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resize <count>",
		Short: "Set the pool size used by the next start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid worker count %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ResizeWorkers(count)
				if err != nil {
					return err
				}
				return printWorkers(cmd, ctx, resp.Workers, fmt.Sprintf("Pool size set to %d", resp.Workers.Size))
			})
		},
	}
}

func printWorkers(cmd *cobra.Command, ctx *commandContext, status api.WorkerStatus, message string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, status)
	}
	out := cmd.OutOrStdout()
	if message != "" {
		fmt.Fprintln(out, message)
	}
	state := "stopped"
	switch {
	case status.Draining:
		state = "draining"
	case status.Running:
		state = "running"
	}
	fmt.Fprintf(out, "Pool: %s, size %d, %d active\n", state, status.Size, status.Active)
	if len(status.Workers) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(status.Workers))
	for _, w := range status.Workers {
		current := "idle"
		if w.JobID != "" {
			current = shortID(w.JobID)
		}
		rows = append(rows, []string{strconv.Itoa(w.ID), current})
	}
	fmt.Fprint(out, renderTable([]column{right("Worker"), left("Job")}, rows))
	return nil
}
