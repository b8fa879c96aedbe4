package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrisonrobin/engage/pkg/businessday"
	"github.com/harrisonrobin/engage/pkg/model"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var (
	ErrNotFound  = errors.New("task not found")
	ErrAmbiguous = errors.New("task id prefix matches more than one task")
)

// minPrefix is the shortest task ID prefix MarkDone accepts.
const minPrefix = 4

// Store records generated sessions so upcoming and overdue work can be listed.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Entry is a stored task with its completion state.
type Entry struct {
	model.TaskRecord
	DoneAt *time.Time
}

// SessionSummary describes one stored session.
type SessionSummary struct {
	Customer       string
	EngagementDate time.Time
	Bucket         string
	Tasks          int
	Done           int
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// Init applies the schema. It is safe to call on an existing database.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTimeline upserts records. Regenerating a session moves due dates but
// keeps tasks already marked done.
func (s *Store) SaveTimeline(ctx context.Context, records []model.TaskRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, customer, name, title, assignee, bucket, engagement_date, due_date,
		                   day_offset, position, progress, priority, labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			assignee = excluded.assignee,
			due_date = excluded.due_date,
			day_offset = excluded.day_offset,
			position = excluded.position,
			progress = excluded.progress,
			priority = excluded.priority,
			labels = excluded.labels,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Customer, r.Name, r.Title, r.Assignee, r.Bucket,
			r.EngagementDate.Format(businessday.DateLayout), r.DueDate.Format(businessday.DateLayout),
			r.Offset, i, r.Progress, r.Priority, r.Labels,
		)
		if err != nil {
			return fmt.Errorf("failed to save task %q: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debugw("saved timeline", "tasks", len(records))
	return nil
}

const selectEntry = `
	SELECT id, customer, name, title, assignee, bucket, engagement_date, due_date,
	       day_offset, progress, priority, labels, done_at
	FROM tasks
`

// Due lists open tasks due between from and to inclusive, earliest first.
func (s *Store) Due(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return s.query(ctx, selectEntry+`
		WHERE done_at IS NULL AND due_date >= ? AND due_date <= ?
		ORDER BY due_date, bucket, position`,
		from.Format(businessday.DateLayout), to.Format(businessday.DateLayout))
}

// Overdue lists open tasks due before now's date.
func (s *Store) Overdue(ctx context.Context, now time.Time) ([]Entry, error) {
	return s.query(ctx, selectEntry+`
		WHERE done_at IS NULL AND due_date < ?
		ORDER BY due_date, bucket, position`,
		now.Format(businessday.DateLayout))
}

// Session returns the tasks of one bucket in template order.
func (s *Store) Session(ctx context.Context, bucket string) ([]Entry, error) {
	return s.query(ctx, selectEntry+`WHERE bucket = ? ORDER BY position`, bucket)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var engDate, dueDate string
		var doneAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.Customer, &e.Name, &e.Title, &e.Assignee, &e.Bucket, &engDate, &dueDate,
			&e.Offset, &e.Progress, &e.Priority, &e.Labels, &doneAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if e.EngagementDate, err = businessday.ParseDate(engDate); err != nil {
			return nil, err
		}
		if e.DueDate, err = businessday.ParseDate(dueDate); err != nil {
			return nil, err
		}
		e.StartDate = e.DueDate
		if doneAt.Valid {
			t := doneAt.Time
			e.DoneAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkDone completes the task whose ID starts with idPrefix and returns it.
func (s *Store) MarkDone(ctx context.Context, idPrefix string, at time.Time) (*Entry, error) {
	idPrefix = strings.ToLower(strings.TrimSpace(idPrefix))
	if len(idPrefix) < minPrefix {
		return nil, fmt.Errorf("task id %q is too short (need at least %d characters)", idPrefix, minPrefix)
	}
	entries, err := s.query(ctx, selectEntry+`WHERE substr(id, 1, ?) = ? LIMIT 2`, len(idPrefix), idPrefix)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idPrefix)
	case 2:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, idPrefix)
	}

	e := entries[0]
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET done_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), e.ID); err != nil {
		return nil, fmt.Errorf("failed to mark task done: %w", err)
	}
	e.DoneAt = &at
	return &e, nil
}

// Sessions summarises stored sessions, optionally for one customer.
func (s *Store) Sessions(ctx context.Context, customer string) ([]SessionSummary, error) {
	query := `
		SELECT customer, engagement_date, bucket, COUNT(*), COUNT(done_at)
		FROM tasks
		WHERE ? = '' OR customer = ?
		GROUP BY bucket
		ORDER BY engagement_date, bucket`
	rows, err := s.db.QueryContext(ctx, query, customer, customer)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var engDate string
		if err := rows.Scan(&ss.Customer, &engDate, &ss.Bucket, &ss.Tasks, &ss.Done); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if ss.EngagementDate, err = businessday.ParseDate(engDate); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

// DeleteSession removes every task in bucket and returns their IDs.
func (s *Store) DeleteSession(ctx context.Context, bucket string) ([]string, error) {
	entries, err := s.Session(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no session %q", ErrNotFound, bucket)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE bucket = ?`, bucket); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	s.logger.Debugw("deleted session", "bucket", bucket, "tasks", len(ids))
	return ids, nil
}
