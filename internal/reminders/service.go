// Package reminders layers lookup and mutation policy over the store:
// task normalization, tolerance-window matching and owner resolution.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/store"
)

const (
	// DefaultCandidateLimit caps task-only lookups so a prompt never lists
	// an unbounded number of reminders.
	DefaultCandidateLimit = 5

	// DefaultTolerance is the ± margin when matching a spoken time against
	// a stored instant. Slot extraction and the stored value can differ by
	// seconds due to rounding, so this is a deliberate fuzzy match.
	DefaultTolerance = time.Minute
)

// Service orchestrates reminder use cases for the dialogue layer.
type Service struct {
	store          store.Store
	candidateLimit int
	tolerance      time.Duration
}

func NewService(st store.Store) *Service {
	return &Service{
		store:          st,
		candidateLimit: DefaultCandidateLimit,
		tolerance:      DefaultTolerance,
	}
}

// WithLookupPolicy overrides the candidate cap and tolerance window.
func (s *Service) WithLookupPolicy(limit int, tolerance time.Duration) *Service {
	if limit > 0 {
		s.candidateLimit = limit
	}
	if tolerance > 0 {
		s.tolerance = tolerance
	}
	return s
}

// NormalizeTask canonicalizes a task label: trimmed, lower-cased, inner
// whitespace collapsed.
func NormalizeTask(task string) string {
	return strings.Join(strings.Fields(strings.ToLower(task)), " ")
}

// Create persists a new pending reminder.
func (s *Service) Create(ctx context.Context, ownerID, task string, remindAt time.Time) (*model.Reminder, error) {
	task = NormalizeTask(task)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", model.ErrValidation)
	}
	if task == "" {
		return nil, fmt.Errorf("%w: task is empty", model.ErrValidation)
	}
	if remindAt.IsZero() {
		return nil, fmt.Errorf("%w: remind time is required", model.ErrValidation)
	}
	return s.store.Reminders().Create(ctx, &model.Reminder{
		OwnerID:  ownerID,
		Task:     task,
		RemindAt: remindAt,
	})
}

// FindCandidates returns pending reminders matching a task and/or an instant.
// With a task only, all pending reminders for that task are returned (capped).
// With an instant, matches fall inside the ± tolerance window. At least one
// of the two must be supplied.
func (s *Service) FindCandidates(ctx context.Context, ownerID, task string, at *time.Time) ([]*model.Reminder, error) {
	task = NormalizeTask(task)
	switch {
	case task == "" && at == nil:
		return nil, fmt.Errorf("%w: need a task or a time to search by", model.ErrValidation)
	case at == nil:
		return s.store.Reminders().FindByTask(ctx, ownerID, task, s.candidateLimit)
	case task == "":
		return s.store.Reminders().FindInWindow(ctx, ownerID, at.Add(-s.tolerance), at.Add(s.tolerance))
	default:
		return s.store.Reminders().FindByTaskInWindow(ctx, ownerID, task, at.Add(-s.tolerance), at.Add(s.tolerance))
	}
}

// Get fetches a pending reminder by id, owner-scoped.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Reminder, error) {
	return s.store.Reminders().Get(ctx, ownerID, id)
}

// UpdateRemindAt moves a pending reminder to a new instant.
func (s *Service) UpdateRemindAt(ctx context.Context, ownerID, id string, remindAt time.Time) error {
	return s.store.Reminders().UpdateRemindAt(ctx, ownerID, id, remindAt)
}

// Delete removes a pending reminder.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.Reminders().Delete(ctx, ownerID, id)
}

// Complete marks a reminder done; completed is terminal.
func (s *Service) Complete(ctx context.Context, ownerID, id string) error {
	return s.store.Reminders().MarkCompleted(ctx, ownerID, id)
}

// ResolveOwner determines the owner for a turn. A payload-supplied owner id
// wins and is remembered for the session; otherwise the durable session
// mapping is consulted; when no mapping exists, the session id itself serves
// as a stable owner key and is persisted so later turns agree. Only a missing
// mapping triggers that fallback: a store failure must surface as an error,
// never mint a new owner over an existing binding.
func (s *Service) ResolveOwner(ctx context.Context, sessionID, payloadOwner string) (string, error) {
	if payloadOwner != "" {
		if err := s.store.Sessions().Put(ctx, sessionID, payloadOwner); err != nil {
			return "", err
		}
		return payloadOwner, nil
	}
	owner, err := s.store.Sessions().Get(ctx, sessionID)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", err
	}
	if err := s.store.Sessions().Put(ctx, sessionID, sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}
