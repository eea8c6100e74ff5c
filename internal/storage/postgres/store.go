// Package postgres implements storage.Store over PostgreSQL. It mirrors the
// sqlite store and is selected when several worker processes share one queue.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/scrypster/stash/internal/storage"
	"github.com/scrypster/stash/pkg/types"
)

// Store is the PostgreSQL-backed storage.Store implementation.
type Store struct {
	db *sql.DB
}

// New connects using a lib/pq DSN and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Users ---

// GetUser resolves a user by identifier.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// CreateUser registers a user.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES ($1, $2, $3)`,
		user.ID, user.Name, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// ListUsers returns all registered users.
func (s *Store) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []types.User
	for rows.Next() {
		var user types.User
		if err := rows.Scan(&user.ID, &user.Name, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// --- Captures ---

// CreateCapture persists a new capture in StatusPending.
func (s *Store) CreateCapture(ctx context.Context, capture *types.Capture) error {
	metadata, err := json.Marshal(capture.Metadata)
	if err != nil {
		return fmt.Errorf("marshal capture metadata: %w", err)
	}
	ts := time.Now().UTC()
	capture.Status = types.StatusPending
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO captures (id, user_id, type, content, context, metadata, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)`,
		capture.ID, capture.UserID, string(capture.Type), capture.Content,
		capture.Context, string(metadata), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	return nil
}

// GetCapture loads a capture by identifier.
func (s *Store) GetCapture(ctx context.Context, id string) (*types.Capture, error) {
	var capture types.Capture
	var captureType, metadata, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, content, context, metadata, status, created_at, updated_at
		FROM captures WHERE id = $1`, id,
	).Scan(&capture.ID, &capture.UserID, &captureType, &capture.Content,
		&capture.Context, &metadata, &status, &capture.CreatedAt, &capture.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get capture: %w", err)
	}
	capture.Type = types.CaptureType(captureType)
	capture.Status = types.CaptureStatus(status)
	if err := json.Unmarshal([]byte(metadata), &capture.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal capture metadata: %w", err)
	}
	return &capture, nil
}

// UpdateCaptureStatus moves a capture's lifecycle forward. The row is locked
// for the duration of the check so concurrent workers cannot regress it.
func (s *Store) UpdateCaptureStatus(ctx context.Context, id string, status types.CaptureStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM captures WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read capture status: %w", err)
	}

	if !types.CanTransition(types.CaptureStatus(current), status) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, current, status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE captures SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update capture status: %w", err)
	}
	return tx.Commit()
}

// ListRecentCaptures returns the user's completed captures since the cutoff.
func (s *Store) ListRecentCaptures(ctx context.Context, userID string, since time.Time, limit int) ([]types.Capture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, content, context, metadata, status, created_at, updated_at
		FROM captures
		WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
		ORDER BY created_at DESC LIMIT $3`,
		userID, since.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent captures: %w", err)
	}
	defer rows.Close()

	var captures []types.Capture
	for rows.Next() {
		var capture types.Capture
		var captureType, metadata, status string
		if err := rows.Scan(&capture.ID, &capture.UserID, &captureType, &capture.Content,
			&capture.Context, &metadata, &status, &capture.CreatedAt, &capture.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		capture.Type = types.CaptureType(captureType)
		capture.Status = types.CaptureStatus(status)
		if err := json.Unmarshal([]byte(metadata), &capture.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal capture metadata: %w", err)
		}
		captures = append(captures, capture)
	}
	return captures, rows.Err()
}

// --- Side effects ---

// AddTags attaches tags to a capture, ignoring ones already present.
func (s *Store) AddTags(ctx context.Context, captureID string, tags []string) error {
	for _, tag := range tags {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO capture_tags (capture_id, tag, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (capture_id, tag) DO NOTHING`,
			captureID, tag, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("add tag %q: %w", tag, err)
		}
	}
	return nil
}

// ListTags returns a capture's tags.
func (s *Store) ListTags(ctx context.Context, captureID string) ([]string, error) {
	return s.listStrings(ctx,
		`SELECT tag FROM capture_tags WHERE capture_id = $1 ORDER BY tag`, captureID)
}

// AddToCollection records collection membership, idempotently.
func (s *Store) AddToCollection(ctx context.Context, userID, captureID, collection string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_collections (user_id, capture_id, collection, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (capture_id, collection) DO NOTHING`,
		userID, captureID, collection, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add to collection %q: %w", collection, err)
	}
	return nil
}

// ListCollections returns the distinct collection names for a user.
func (s *Store) ListCollections(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx,
		`SELECT DISTINCT collection FROM capture_collections WHERE user_id = $1 ORDER BY collection`, userID)
}

// ListCollectionMembers returns capture ids filed under a collection.
func (s *Store) ListCollectionMembers(ctx context.Context, userID, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT capture_id FROM capture_collections
		WHERE user_id = $1 AND collection = $2 ORDER BY created_at`, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("list collection members: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) listStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// CreateReminder persists a reminder. Returns false when an identical
// reminder (same capture, same message) already exists.
func (s *Store) CreateReminder(ctx context.Context, reminder *types.Reminder) (bool, error) {
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, capture_id, user_id, message, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (capture_id, message) DO NOTHING`,
		reminder.ID, reminder.CaptureID, reminder.UserID, reminder.Message,
		reminder.ScheduledAt.UTC(), reminder.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetReminder loads a reminder by identifier.
func (s *Store) GetReminder(ctx context.Context, id string) (*types.Reminder, error) {
	var reminder types.Reminder
	err := s.db.QueryRowContext(ctx, `
		SELECT id, capture_id, user_id, message, scheduled_at, created_at
		FROM reminders WHERE id = $1`, id,
	).Scan(&reminder.ID, &reminder.CaptureID, &reminder.UserID,
		&reminder.Message, &reminder.ScheduledAt, &reminder.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &reminder, nil
}

// SaveSummary upserts the capture's summary.
func (s *Store) SaveSummary(ctx context.Context, captureID, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_summaries (capture_id, summary, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (capture_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			updated_at = EXCLUDED.updated_at`,
		captureID, summary, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// AddEntities persists extracted entities, ignoring duplicates.
func (s *Store) AddEntities(ctx context.Context, captureID string, entities []storage.CaptureEntity) error {
	for _, entity := range entities {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO capture_entities (capture_id, name, kind) VALUES ($1, $2, $3)
			ON CONFLICT (capture_id, name, kind) DO NOTHING`,
			captureID, entity.Name, entity.Kind,
		)
		if err != nil {
			return fmt.Errorf("add entity %q: %w", entity.Name, err)
		}
	}
	return nil
}

// AddCalendarEvent records a calendar event, idempotently.
func (s *Store) AddCalendarEvent(ctx context.Context, captureID, title string, startsAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (capture_id, title, starts_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (capture_id, title) DO NOTHING`,
		captureID, title, startsAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add calendar event: %w", err)
	}
	return nil
}

// --- Notifications ---

// CreateNotification persists the durable record of a dispatch.
func (s *Store) CreateNotification(ctx context.Context, notification *types.Notification) error {
	metadata, err := json.Marshal(notification.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		notification.ID, notification.UserID, notification.Type,
		notification.Title, notification.Body, string(metadata),
		notification.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// --- Push registrations ---

// AddPushRegistration registers a delivery target for a user.
func (s *Store) AddPushRegistration(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_registrations (user_id, token, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO NOTHING`,
		userID, token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add push registration: %w", err)
	}
	return nil
}

// ListPushRegistrations returns a user's delivery targets.
func (s *Store) ListPushRegistrations(ctx context.Context, userID string) ([]string, error) {
	return s.listStrings(ctx,
		`SELECT token FROM push_registrations WHERE user_id = $1 ORDER BY created_at`, userID)
}

// RemovePushRegistration drops a stale delivery target.
func (s *Store) RemovePushRegistration(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_registrations WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return fmt.Errorf("remove push registration: %w", err)
	}
	return nil
}

// Compile-time assertion.
var _ storage.Store = (*Store)(nil)
