package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spool/internal/events"
	"spool/internal/fileutil"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/preset"
)

const lowDiskThreshold = 2 << 30

// validated is a request that passed every submit-time check.
type validated struct {
	req        job.Request
	presetName string
	encode     preset.Config
}

// Submit validates req and queues it as a Pending job. Rejected requests never
// enter the live set.
func (s *Scheduler) Submit(ctx context.Context, req job.Request) (job.Job, error) {
	jobs, err := s.SubmitBatch(ctx, []job.Request{req})
	if err != nil {
		return job.Job{}, err
	}
	return jobs[0], nil
}

// SubmitBatch validates every request before queueing any of them. Either all
// requests are queued or none are.
func (s *Scheduler) SubmitBatch(ctx context.Context, reqs []job.Request) ([]job.Job, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no requests", ErrInvalidRequest)
	}
	checked := make([]validated, 0, len(reqs))
	outputs := make(map[string]int, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.validate(req)
		if err != nil {
			if len(reqs) > 1 {
				return nil, fmt.Errorf("request %d: %w", i+1, err)
			}
			return nil, err
		}
		if prev, dup := outputs[v.req.OutputPath]; dup {
			return nil, fmt.Errorf("%w: requests %d and %d write the same output %s", ErrInvalidRequest, prev+1, i+1, v.req.OutputPath)
		}
		outputs[v.req.OutputPath] = i
		checked = append(checked, v)
	}

	s.mu.Lock()
	for id, rec := range s.jobs {
		if rec.job.IsActive() {
			if _, clash := outputs[rec.job.OutputPath]; clash {
				s.mu.Unlock()
				return nil, fmt.Errorf("%w: output %s is already targeted by job %s", ErrInvalidRequest, rec.job.OutputPath, id.Short())
			}
		}
	}
	now := s.now()
	created := make([]job.Job, 0, len(checked))
	queued := make([]job.ID, 0, len(checked))
	for _, v := range checked {
		j := job.New(job.NewID(), v.req, v.presetName, v.encode, now)
		if _, err := s.queue.Enqueue(j.ID, j.Priority); err != nil {
			for _, id := range queued {
				s.queue.Remove(id)
				delete(s.jobs, id)
				s.counts[job.StatusPending]--
			}
			s.mu.Unlock()
			return nil, err
		}
		s.seq++
		s.jobs[j.ID] = &record{job: j, seq: s.seq, done: make(chan struct{})}
		s.counts[job.StatusPending]++
		queued = append(queued, j.ID)
		created = append(created, j.Clone())
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	logger := logging.WithContext(ctx, s.logger)
	for _, j := range created {
		logger.Info("job submitted",
			logging.String(logging.FieldJobID, string(j.ID)),
			logging.String(logging.FieldPreset, j.Preset),
			logging.String("priority", j.Priority.String()),
			logging.String("input", j.InputPath),
			logging.String("output", j.OutputPath),
		)
	}
	s.events.Publish(events.Event{Type: events.TypeQueueSnapshot, Snapshot: &snapshot})
	s.pool.Notify()
	return created, nil
}

func (s *Scheduler) validate(req job.Request) (validated, error) {
	input := strings.TrimSpace(req.InputPath)
	output := strings.TrimSpace(req.OutputPath)
	if input == "" {
		return validated{}, fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	if output == "" {
		return validated{}, fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}
	if !req.Priority.Valid() {
		return validated{}, fmt.Errorf("%w: unknown priority %d", ErrInvalidRequest, int(req.Priority))
	}

	var err error
	if input, err = filepath.Abs(input); err != nil {
		return validated{}, fmt.Errorf("%w: input path: %w", ErrInvalidRequest, err)
	}
	if output, err = filepath.Abs(output); err != nil {
		return validated{}, fmt.Errorf("%w: output path: %w", ErrInvalidRequest, err)
	}
	if input == output {
		return validated{}, fmt.Errorf("%w: output would overwrite input %s", ErrInvalidRequest, input)
	}
	if err := fileutil.CheckReadable(input); err != nil {
		return validated{}, fmt.Errorf("%w: input: %w", ErrInvalidRequest, err)
	}
	if err := fileutil.CheckWritableDir(output); err != nil {
		return validated{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if inInfo, err := os.Stat(input); err == nil {
		if outInfo, err := os.Stat(output); err == nil && os.SameFile(inInfo, outInfo) {
			return validated{}, fmt.Errorf("%w: output would overwrite input %s", ErrInvalidRequest, input)
		}
	}

	encode, err := preset.Resolve(req.Encode)
	if err != nil {
		return validated{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := encode.CheckOutputPath(output); err != nil {
		return validated{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	name := strings.TrimSpace(req.Encode.Preset)
	if p, ok := preset.Lookup(name); ok {
		name = p.Name
	} else if name == "" {
		name = preset.DefaultPreset
	}

	s.warnLowDisk(output)

	req.InputPath = input
	req.OutputPath = output
	return validated{req: req, presetName: name, encode: encode}, nil
}

func (s *Scheduler) warnLowDisk(output string) {
	free, err := fileutil.FreeBytes(filepath.Dir(output))
	if err != nil || free >= lowDiskThreshold {
		return
	}
	logging.WarnWithContext(s.logger, "output volume is low on space", "low_disk_space",
		logging.String("output", output),
		logging.Int64("free_bytes", int64(free)),
		logging.String(logging.FieldImpact, "the transcode may fail when the disk fills"),
		logging.String(logging.FieldErrorHint, "free space on the output volume"),
	)
}
