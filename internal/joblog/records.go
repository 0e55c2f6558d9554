package joblog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"spool/internal/job"
)

const entryColumns = "id, input_path, output_path, preset, encode_json, priority, status, error_message, failure_kind, cancel_reason, worker_id, source_duration_seconds, input_bytes, output_bytes, created_at, started_at, completed_at, recorded_at"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one archived job.
type Entry struct {
	Job        job.Job   `json:"job"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Filter narrows History results.
type Filter struct {
	Statuses []job.Status
	Limit    int
}

// Record archives terminal jobs. Non-terminal jobs are rejected so the
// history never shows work that is still in flight.
func (s *Store) Record(ctx context.Context, jobs []job.Job) (int, error) {
	ctx = ensureContext(ctx)
	if len(jobs) == 0 {
		return 0, nil
	}
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			return 0, fmt.Errorf("record job %s: status %s is not terminal", j.ID, j.Status)
		}
	}
	recordedAt := time.Now().UTC().Format(timeLayout)
	written := 0
	err := retryOnBusy(ctx, func() error {
		written = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO job_history (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, j := range jobs {
			encoded, err := json.Marshal(j.Encode)
			if err != nil {
				return fmt.Errorf("encode config for %s: %w", j.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				string(j.ID),
				j.InputPath,
				j.OutputPath,
				j.Preset,
				string(encoded),
				int(j.Priority),
				string(j.Status),
				nullableString(j.Error),
				nullableString(j.FailureKind),
				nullableString(j.CancelReason),
				j.WorkerID,
				j.SourceDurationSeconds,
				nullableSize(j.InputBytes),
				nullableSize(j.OutputBytes),
				j.CreatedAt.UTC().Format(timeLayout),
				nullableTime(j.StartedAt),
				nullableTime(j.CompletedAt),
				recordedAt,
			); err != nil {
				return err
			}
			written++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("record history: %w", err)
	}
	return written, nil
}

// History returns archived jobs, most recently finished first.
func (s *Store) History(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + entryColumns + ` FROM job_history`
	var args []any
	if len(filter.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(filter.Statuses)) + `)`
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY completed_at DESC, recorded_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns a single archived job.
func (s *Store) Get(ctx context.Context, id job.ID) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM job_history WHERE id = ?`, string(id))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stats counts archived jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[job.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM job_history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[job.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[job.Status(status)] = count
	}
	return stats, rows.Err()
}

// Prune deletes entries recorded before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM job_history WHERE recorded_at < ?`, cutoff.UTC().Format(timeLayout))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		id             string
		inputPath      string
		outputPath     string
		presetName     string
		encodeJSON     string
		priority       int
		status         string
		errorMessage   sql.NullString
		failureKind    sql.NullString
		cancelReason   sql.NullString
		workerID       sql.NullInt64
		sourceDuration sql.NullFloat64
		inputBytes     sql.NullInt64
		outputBytes    sql.NullInt64
		createdRaw     string
		startedRaw     sql.NullString
		completedRaw   sql.NullString
		recordedRaw    string
	)
	if err := scanner.Scan(
		&id,
		&inputPath,
		&outputPath,
		&presetName,
		&encodeJSON,
		&priority,
		&status,
		&errorMessage,
		&failureKind,
		&cancelReason,
		&workerID,
		&sourceDuration,
		&inputBytes,
		&outputBytes,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&recordedRaw,
	); err != nil {
		return Entry{}, err
	}

	j := job.Job{
		ID:                    job.ID(id),
		InputPath:             inputPath,
		OutputPath:            outputPath,
		Preset:                presetName,
		Priority:              job.Priority(priority),
		Status:                job.Status(status),
		Error:                 errorMessage.String,
		FailureKind:           failureKind.String,
		CancelReason:          cancelReason.String,
		WorkerID:              int(workerID.Int64),
		SourceDurationSeconds: sourceDuration.Float64,
		InputBytes:            inputBytes.Int64,
		OutputBytes:           outputBytes.Int64,
	}
	if err := json.Unmarshal([]byte(encodeJSON), &j.Encode); err != nil {
		return Entry{}, fmt.Errorf("decode encode config for %s: %w", id, err)
	}
	if j.Status == job.StatusCompleted {
		j.Progress = 100
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		j.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			j.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			j.CompletedAt = &completed
		}
	}
	entry := Entry{Job: j}
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		entry.RecordedAt = recorded
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableSize(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
