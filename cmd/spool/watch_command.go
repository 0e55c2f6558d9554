package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/events"
	"spool/internal/ipc"
	"spool/internal/job"
)

var errWatchDone = errors.New("watch finished")

type watchOptions struct {
	jobID    string
	exit     bool
	poll     bool
	interval time.Duration
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow job events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.exit && opts.jobID == "" {
				return errors.New("--exit requires --job")
			}
			client, err := ctx.dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if opts.jobID != "" {
				resp, err := client.Get(opts.jobID)
				if err != nil {
					return err
				}
				opts.jobID = resp.Job.ID
				if opts.exit && job.Status(resp.Job.Status).IsTerminal() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already %s\n", shortID(resp.Job.ID), strings.ToLower(formatStatusLabel(resp.Job.Status)))
					return nil
				}
			}

			printer := newEventPrinter(cmd.OutOrStdout(), ctx.jsonOutput(), opts)
			status, err := client.Status()
			if err != nil {
				return err
			}
			var watchErr error
			if addr := status.Status.APIAddress; addr != "" && !opts.poll {
				token := ""
				if cfg := ctx.configValue(); cfg != nil {
					token = cfg.Paths.APIToken
				}
				watchErr = streamEvents(cmd.Context(), eventsURL(addr), token, printer.handle)
			} else {
				watchErr = pollEvents(cmd.Context(), client, opts.interval, printer.handle)
			}
			if errors.Is(watchErr, errWatchDone) || errors.Is(watchErr, context.Canceled) {
				return nil
			}
			return watchErr
		},
	}
	cmd.Flags().StringVarP(&opts.jobID, "job", "j", "", "Only show events for this job id or prefix")
	cmd.Flags().BoolVar(&opts.exit, "exit", false, "Exit once the watched job finishes")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Poll the daemon socket instead of streaming over HTTP")
	cmd.Flags().DurationVar(&opts.interval, "interval", 500*time.Millisecond, "Polling interval")
	return cmd
}

// eventPrinter writes one line per event. On a terminal, consecutive progress
// events for the same job rewrite a single line.
type eventPrinter struct {
	out  io.Writer
	json bool
	tty  bool
	opts watchOptions
	enc  *json.Encoder

	inline job.ID
}

func newEventPrinter(out io.Writer, asJSON bool, opts watchOptions) *eventPrinter {
	return &eventPrinter{
		out:  out,
		json: asJSON,
		tty:  !asJSON && isTerminal(out),
		opts: opts,
		enc:  json.NewEncoder(out),
	}
}

func (p *eventPrinter) handle(evt events.Event) error {
	if p.opts.jobID != "" && string(evt.JobID) != p.opts.jobID {
		return nil
	}
	if p.json {
		if err := p.enc.Encode(evt); err != nil {
			return err
		}
	} else {
		p.print(evt)
	}
	if p.opts.exit && evt.Type.IsTerminal() {
		return errWatchDone
	}
	return nil
}

func (p *eventPrinter) print(evt events.Event) {
	line := formatEvent(evt)
	if !p.tty {
		fmt.Fprintln(p.out, line)
		return
	}
	if evt.Type == events.TypeJobProgress {
		if p.inline != "" && p.inline != evt.JobID {
			fmt.Fprintln(p.out)
		}
		fmt.Fprint(p.out, "\r"+line+"\x1b[K")
		p.inline = evt.JobID
		return
	}
	if p.inline != "" {
		fmt.Fprintln(p.out)
		p.inline = ""
	}
	fmt.Fprintln(p.out, line)
}

func formatEvent(evt events.Event) string {
	ts := evt.Timestamp.Local().Format("15:04:05")
	if evt.Type == events.TypeQueueSnapshot && evt.Snapshot != nil {
		s := evt.Snapshot
		return fmt.Sprintf("%s %-15s pending %d  running %d  completed %d  failed %d  cancelled %d",
			ts, evt.Type, s.Pending, s.Running, s.Completed, s.Failed, s.Cancelled)
	}
	var detail string
	switch evt.Type {
	case events.TypeJobStarted:
		detail = fmt.Sprintf("worker %d  %s", evt.WorkerID, evt.InputPath)
	case events.TypeJobProgress:
		detail = fmt.Sprintf("%5.1f%%", evt.Percent)
		if evt.FPS != nil {
			detail += fmt.Sprintf("  %.1f fps", *evt.FPS)
		}
		if evt.ETA != nil {
			detail += "  eta " + formatSeconds(evt.ETA.Seconds())
		}
	case events.TypeJobCompleted:
		detail = "done in " + formatSeconds(evt.Duration.Seconds()) + "  " + evt.OutputPath
	case events.TypeJobFailed, events.TypeJobCancelled:
		detail = evt.Reason
	}
	return fmt.Sprintf("%s %-15s %s  %s", ts, evt.Type, shortID(string(evt.JobID)), detail)
}

// eventsURL builds the stream URL, dialing loopback when the daemon binds a
// wildcard address.
func eventsURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			host = "127.0.0.1"
		}
		addr = net.JoinHostPort(host, port)
	}
	return "http://" + addr + "/api/events"
}

func streamEvents(ctx context.Context, url, token string, handle func(events.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: unexpected status %s", resp.Status)
	}
	if err := readSSE(resp.Body, handle); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// readSSE decodes one event per data frame until r ends or handle fails.
func readSSE(r io.Reader, handle func(events.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var evt events.Event
			if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := handle(evt); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func pollEvents(ctx context.Context, client *ipc.Client, interval time.Duration, handle func(events.Event) error) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	var after uint64
	if resp, err := client.Events(ipc.EventsRequest{Limit: 1}); err != nil {
		return err
	} else if n := len(resp.Events); n > 0 {
		after = resp.Events[n-1].Sequence
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		resp, err := client.Events(ipc.EventsRequest{After: after})
		if err != nil {
			return err
		}
		for _, evt := range resp.Events {
			after = evt.Sequence
			if err := handle(evt); err != nil {
				return err
			}
		}
	}
}
