package store

import (
	"context"
	"time"

	"github.com/kikilabs/kiki-reminders/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Reminders() Reminders
	Sessions() Sessions
	HealthPing(ctx context.Context) error
}

// Reminders is the reminder repository. Every query is scoped to an owner
// and restricted to pending status; completed is terminal and invisible here.
type Reminders interface {
	Create(ctx context.Context, r *model.Reminder) (*model.Reminder, error)
	Get(ctx context.Context, ownerID, id string) (*model.Reminder, error)
	FindByTask(ctx context.Context, ownerID, task string, limit int) ([]*model.Reminder, error)
	FindByTaskInWindow(ctx context.Context, ownerID, task string, from, to time.Time) ([]*model.Reminder, error)
	FindInWindow(ctx context.Context, ownerID string, from, to time.Time) ([]*model.Reminder, error)
	UpdateRemindAt(ctx context.Context, ownerID, id string, remindAt time.Time) error
	MarkCompleted(ctx context.Context, ownerID, id string) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Sessions is the durable session-to-owner mapping. A process-local map here
// would break under multiple instances, since any two turns of one
// conversation may land on different servers.
type Sessions interface {
	Put(ctx context.Context, sessionID, ownerID string) error
	Get(ctx context.Context, sessionID string) (string, error)
}
