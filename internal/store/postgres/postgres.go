// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) (store.Store, error) {
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &pgStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			reminder_id   TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			task          TEXT NOT NULL,
			remind_at     TIMESTAMPTZ NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner_task
			ON reminders (owner_id, status, task, remind_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner_time
			ON reminders (owner_id, status, remind_at)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id    TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type pgStore struct{ db *sql.DB }

func (s *pgStore) Reminders() store.Reminders { return &reminders{db: s.db} }
func (s *pgStore) Sessions() store.Sessions   { return &sessions{db: s.db} }

func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Reminders ---

type reminders struct{ db *sql.DB }

func (r *reminders) Create(ctx context.Context, m *model.Reminder) (*model.Reminder, error) {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	row := r.db.QueryRowContext(ctx, `
        INSERT INTO reminders (reminder_id, owner_id, task, remind_at, status)
        VALUES ($1,$2,$3,$4,'pending')
        RETURNING creation_time
    `, id, m.OwnerID, m.Task, m.RemindAt.UTC())
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.Status = model.StatusPending
	out.CreatedAt = created
	return &out, nil
}

func (r *reminders) Get(ctx context.Context, ownerID, id string) (*model.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT reminder_id, owner_id, task, remind_at, status, creation_time
        FROM reminders WHERE owner_id=$1 AND reminder_id=$2 AND status='pending'
    `, ownerID, id)
	return scanReminder(row)
}

func (r *reminders) FindByTask(ctx context.Context, ownerID, task string, limit int) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT reminder_id, owner_id, task, remind_at, status, creation_time
        FROM reminders WHERE owner_id=$1 AND status='pending' AND task=$2
        ORDER BY remind_at ASC LIMIT $3
    `, ownerID, task, limit)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) FindByTaskInWindow(ctx context.Context, ownerID, task string, from, to time.Time) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT reminder_id, owner_id, task, remind_at, status, creation_time
        FROM reminders WHERE owner_id=$1 AND status='pending' AND task=$2
          AND remind_at >= $3 AND remind_at <= $4
        ORDER BY remind_at ASC
    `, ownerID, task, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) FindInWindow(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT reminder_id, owner_id, task, remind_at, status, creation_time
        FROM reminders WHERE owner_id=$1 AND status='pending'
          AND remind_at >= $2 AND remind_at <= $3
        ORDER BY remind_at ASC
    `, ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) UpdateRemindAt(ctx context.Context, ownerID, id string, remindAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE reminders SET remind_at=$1
        WHERE owner_id=$2 AND reminder_id=$3 AND status='pending'
    `, remindAt.UTC(), ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *reminders) MarkCompleted(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE reminders SET status='completed'
        WHERE owner_id=$1 AND reminder_id=$2 AND status='pending'
    `, ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *reminders) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `
        DELETE FROM reminders WHERE owner_id=$1 AND reminder_id=$2
    `, ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Sessions ---

type sessions struct{ db *sql.DB }

func (s *sessions) Put(ctx context.Context, sessionID, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (session_id, owner_id) VALUES ($1,$2)
        ON CONFLICT (session_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
    `, sessionID, ownerID)
	return err
}

func (s *sessions) Get(ctx context.Context, sessionID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM sessions WHERE session_id=$1`, sessionID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}

// --- helpers ---

func scanReminder(row *sql.Row) (*model.Reminder, error) {
	var m model.Reminder
	err := row.Scan(&m.ID, &m.OwnerID, &m.Task, &m.RemindAt, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectReminders(rows *sql.Rows) ([]*model.Reminder, error) {
	defer rows.Close()
	var out []*model.Reminder
	for rows.Next() {
		var m model.Reminder
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Task, &m.RemindAt, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
