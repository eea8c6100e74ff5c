package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// EnqueueJob persists a pending job.
func (s *Store) EnqueueJob(ctx context.Context, job *types.Job) error {
	ts := now()
	runAfter := ts
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339Nano)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, payload, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, string(job.Kind), job.PayloadJSON, maxAttempts, runAfter, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically claims the next runnable job of the given kinds.
// The select-then-update runs in one transaction with a status guard so a
// job is dispatched to exactly one worker at a time.
func (s *Store) ClaimNextJob(ctx context.Context, kinds []types.JobKind) (*types.Job, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	nowStr := now()
	placeholders := strings.Repeat(",?", len(kinds)-1)
	query := `SELECT id, kind, payload, status, attempts, max_attempts, run_after, last_error, created_at, updated_at
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND kind IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]interface{}, 0, len(kinds)+1)
	args = append(args, nowStr)
	for _, k := range kinds {
		args = append(args, string(k))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var job types.Job
	var kind, status, runAfter, createdAt, updatedAt string
	err = tx.QueryRowContext(ctx, query, args...).Scan(
		&job.ID, &kind, &job.PayloadJSON, &status, &job.Attempts,
		&job.MaxAttempts, &runAfter, &job.LastError, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next job: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`,
		nowStr, job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, nil // lost the race; caller polls again
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Kind = types.JobKind(kind)
	job.Status = types.JobRunning
	if job.RunAfter, err = parseTime(runAfter); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now().UTC()
	return &job, nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RetryJob re-queues a failed job for another attempt at runAfter.
func (s *Store) RetryJob(ctx context.Context, id, errMsg string, runAfter time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', attempts = attempts + 1,
			last_error = ?, run_after = ?, updated_at = ?
		WHERE id = ?`,
		errMsg, runAfter.UTC().Format(time.RFC3339Nano), now(), id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeadLetterJob moves a job to the dead state for operator inspection.
func (s *Store) DeadLetterJob(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'dead', attempts = attempts + 1,
			last_error = ?, updated_at = ?
		WHERE id = ?`,
		errMsg, now(), id)
	if err != nil {
		return fmt.Errorf("dead-letter job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RequeueStaleJobs returns running jobs whose last update is older than
// olderThan to pending. A job only stays running this long when the process
// that claimed it died, so requeueing gives it back to a live worker.
func (s *Store) RequeueStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = ?
		WHERE status = 'running' AND updated_at <= ?`,
		now(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListDeadJobs returns dead jobs, newest first.
func (s *Store) ListDeadJobs(ctx context.Context, limit int) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, status, attempts, max_attempts, run_after, last_error, created_at, updated_at
		FROM jobs WHERE status = 'dead'
		ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var job types.Job
		var kind, status, runAfter, createdAt, updatedAt string
		if err := rows.Scan(&job.ID, &kind, &job.PayloadJSON, &status, &job.Attempts,
			&job.MaxAttempts, &runAfter, &job.LastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Kind = types.JobKind(kind)
		job.Status = types.JobStatus(status)
		if job.RunAfter, err = parseTime(runAfter); err != nil {
			return nil, err
		}
		if job.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
