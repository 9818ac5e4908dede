// Package sqlite implements store.Store on modernc.org/sqlite. It backs
// local and single-instance deployments; postgres serves everything else.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/store"
)

type sqliteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database file and ensures the schema.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB wires an existing connection (used by factory and tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Reminders() store.Reminders { return &reminders{db: s.db} }
func (s *sqliteStore) Sessions() store.Sessions   { return &sessions{db: s.db} }

func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Reminders ---

type reminders struct{ db *sql.DB }

func (r *reminders) Create(ctx context.Context, m *model.Reminder) (*model.Reminder, error) {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO Reminders (ReminderId, OwnerId, Task, RemindAt, Status, CreationTime) VALUES (?,?,?,?,?,?)`,
		id, m.OwnerID, m.Task, m.RemindAt.Unix(), model.StatusPending, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.Status = model.StatusPending
	out.CreatedAt = now
	return &out, nil
}

func (r *reminders) Get(ctx context.Context, ownerID, id string) (*model.Reminder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT ReminderId, OwnerId, Task, RemindAt, Status, CreationTime
		 FROM Reminders WHERE OwnerId = ? AND ReminderId = ? AND Status = ?`,
		ownerID, id, model.StatusPending)
	return scanReminder(row)
}

func (r *reminders) FindByTask(ctx context.Context, ownerID, task string, limit int) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ReminderId, OwnerId, Task, RemindAt, Status, CreationTime
		 FROM Reminders WHERE OwnerId = ? AND Status = ? AND Task = ?
		 ORDER BY RemindAt ASC LIMIT ?`,
		ownerID, model.StatusPending, task, limit)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) FindByTaskInWindow(ctx context.Context, ownerID, task string, from, to time.Time) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ReminderId, OwnerId, Task, RemindAt, Status, CreationTime
		 FROM Reminders WHERE OwnerId = ? AND Status = ? AND Task = ? AND RemindAt >= ? AND RemindAt <= ?
		 ORDER BY RemindAt ASC`,
		ownerID, model.StatusPending, task, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) FindInWindow(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ReminderId, OwnerId, Task, RemindAt, Status, CreationTime
		 FROM Reminders WHERE OwnerId = ? AND Status = ? AND RemindAt >= ? AND RemindAt <= ?
		 ORDER BY RemindAt ASC`,
		ownerID, model.StatusPending, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (r *reminders) UpdateRemindAt(ctx context.Context, ownerID, id string, remindAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE Reminders SET RemindAt = ? WHERE OwnerId = ? AND ReminderId = ? AND Status = ?`,
		remindAt.Unix(), ownerID, id, model.StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *reminders) MarkCompleted(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE Reminders SET Status = ? WHERE OwnerId = ? AND ReminderId = ? AND Status = ?`,
		model.StatusCompleted, ownerID, id, model.StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *reminders) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM Reminders WHERE OwnerId = ? AND ReminderId = ?`, ownerID, id)
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO Sessions (SessionId, OwnerId, CreationTime) VALUES (?,?,?)
		 ON CONFLICT(SessionId) DO UPDATE SET OwnerId = excluded.OwnerId`,
		sessionID, ownerID, time.Now().UTC())
	return err
}

func (s *sessions) Get(ctx context.Context, sessionID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT OwnerId FROM Sessions WHERE SessionId = ?`, sessionID).Scan(&ownerID)
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
	var remindAt int64
	err := row.Scan(&m.ID, &m.OwnerID, &m.Task, &remindAt, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.RemindAt = time.Unix(remindAt, 0).UTC()
	return &m, nil
}

func collectReminders(rows *sql.Rows) ([]*model.Reminder, error) {
	defer rows.Close()
	var out []*model.Reminder
	for rows.Next() {
		var m model.Reminder
		var remindAt int64
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Task, &remindAt, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.RemindAt = time.Unix(remindAt, 0).UTC()
		out = append(out, &m)
	}
	return out, rows.Err()
}
