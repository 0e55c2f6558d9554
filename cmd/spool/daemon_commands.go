package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/config"
	"spool/internal/daemonctl"
	"spool/internal/daemonrun"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the spool daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.State == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the spool daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg, daemonrun.PIDPath(cfg), stopGrace(ctx))
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the spool daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			result, err := daemonctl.Restart(ctx.socketPath(), cfg, daemonrun.PIDPath(cfg), exe,
				daemonLaunchOptions(ctx), stopGrace(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.WasRunning {
				fmt.Fprintln(out, "Daemon stopped")
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			renderStatus(out, snap, shouldColorize(out))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	status := snap.Status

	writeSectionHeader(out, "Daemon", colorize)
	if snap.Online {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		if status.StartedAt != "" {
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatDisplayTime(status.StartedAt), colorize))
		}
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	if status.APIAddress != "" {
		fmt.Fprintln(out, renderStatusLine("HTTP API", statusInfo, status.APIAddress, colorize))
	}
	fmt.Fprintln(out)

	if snap.Online {
		writeSectionHeader(out, "Workers", colorize)
		workers := status.Workers
		switch {
		case workers.Draining:
			fmt.Fprintln(out, renderStatusLine("Pool", statusWarn, fmt.Sprintf("Draining (%d active)", workers.Active), colorize))
		case workers.Running:
			fmt.Fprintln(out, renderStatusLine("Pool", statusOK, fmt.Sprintf("Running %d workers (%d active)", workers.Size, workers.Active), colorize))
		default:
			fmt.Fprintln(out, renderStatusLine("Pool", statusInfo, fmt.Sprintf("Stopped (size %d)", workers.Size), colorize))
		}
		fmt.Fprintln(out)

		writeSectionHeader(out, "Jobs", colorize)
		fmt.Fprint(out, renderTable([]column{left("Status"), right("Jobs")}, statsRows(status.Stats)))
		fmt.Fprintln(out)
	}

	writeSectionHeader(out, "Dependencies", colorize)
	summary := snap.DependencySummary
	fmt.Fprintln(out, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range status.Dependencies {
		if dep.Available {
			message := "Ready (" + dep.Command + ")"
			if dep.Version != "" {
				message = dep.Version
			}
			fmt.Fprintln(out, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, detail, colorize))
	}

	if status.HistoryPath != "" {
		fmt.Fprintln(out)
		writeSectionHeader(out, "History", colorize)
		fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.HistoryPath, colorize))
		if len(snap.HistoryCounts) > 0 {
			fmt.Fprint(out, renderTable([]column{left("Status"), right("Archived")}, buildCountRows(snap.HistoryCounts)))
		}
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
}

// stopGrace allows the daemon time to apply its stop policy before it is
// killed.
func stopGrace(ctx *commandContext) time.Duration {
	grace := 15 * time.Second
	cfg := ctx.configValue()
	if cfg == nil {
		return grace
	}
	if drain := cfg.DrainTimeout() + 5*time.Second; cfg.Workers.StopPolicy == config.StopPolicyDrain && drain > grace {
		return drain
	}
	return grace + cfg.KillGrace()
}
