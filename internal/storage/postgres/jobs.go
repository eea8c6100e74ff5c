package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// EnqueueJob persists a pending job.
func (s *Store) EnqueueJob(ctx context.Context, job *types.Job) error {
	ts := time.Now().UTC()
	runAfter := ts
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC()
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, payload, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6, $7)`,
		job.ID, string(job.Kind), job.PayloadJSON, maxAttempts, runAfter, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimNextJob atomically claims the next runnable job of the given kinds.
// SKIP LOCKED lets several worker processes poll the same table without
// blocking each other.
func (s *Store) ClaimNextJob(ctx context.Context, kinds []types.JobKind) (*types.Job, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	kindNames := make([]string, len(kinds))
	for i, k := range kinds {
		kindNames[i] = string(k)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var job types.Job
	var kind string
	err = tx.QueryRowContext(ctx, `
		SELECT id, kind, payload, attempts, max_attempts, run_after, last_error, created_at
		FROM jobs
		WHERE status = 'pending' AND run_after <= now() AND kind = ANY($1)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, pq.Array(kindNames),
	).Scan(&job.ID, &kind, &job.PayloadJSON, &job.Attempts,
		&job.MaxAttempts, &job.RunAfter, &job.LastError, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next job: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', updated_at = now() WHERE id = $1`, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Kind = types.JobKind(kind)
	job.Status = types.JobRunning
	job.UpdatedAt = time.Now().UTC()
	return &job, nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', updated_at = now() WHERE id = $1`, id)
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
			last_error = $1, run_after = $2, updated_at = now()
		WHERE id = $3`,
		errMsg, runAfter.UTC(), id)
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
			last_error = $1, updated_at = now()
		WHERE id = $2`,
		errMsg, id)
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
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = now()
		WHERE status = 'running' AND updated_at <= $1`, cutoff)
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
		ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var job types.Job
		var kind, status string
		if err := rows.Scan(&job.ID, &kind, &job.PayloadJSON, &status, &job.Attempts,
			&job.MaxAttempts, &job.RunAfter, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Kind = types.JobKind(kind)
		job.Status = types.JobStatus(status)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
