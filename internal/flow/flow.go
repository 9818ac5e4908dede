// Package flow drives the delete and update confirmation state machines.
// Each pending step lives in a short-lived conversation context; "yes"
// applies the mutation, "no" or an elapsed lifespan abandons it.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kikilabs/kiki-reminders/internal/convctx"
	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/reminders"
	"github.com/kikilabs/kiki-reminders/internal/timeparse"
)

// Context tags for every reminder-management flow. Flows are mutually
// exclusive: starting one clears all the others.
const (
	TagAwaitingTask       = "awaiting_task"
	TagAwaitingTime       = "awaiting_time"
	TagDeleteSelection    = "awaiting_deletion_selection"
	TagDeleteConfirmation = "awaiting_deletion_confirmation"
	TagUpdateSelection    = "awaiting_update_selection"
	TagUpdateNewTime      = "awaiting_update_new_time"
	TagUpdateConfirmation = "awaiting_update_confirmation"
)

// confirmationLifespan keeps a pending question alive for two turns; an
// unanswered confirmation lapses and is equivalent to "no".
const confirmationLifespan = 2

// Action names the mutation a selection or confirmation applies to.
type Action string

const (
	ActionDelete          Action = "delete"
	ActionUpdate          Action = "update-with-new-time"
	ActionUpdateNeedsTime Action = "update-needs-new-time"
)

// AllTags lists every flow context, for exclusivity clearing.
func AllTags() []string {
	return []string{
		TagAwaitingTask,
		TagAwaitingTime,
		TagDeleteSelection,
		TagDeleteConfirmation,
		TagUpdateSelection,
		TagUpdateNewTime,
		TagUpdateConfirmation,
	}
}

// Controller advances the delete/update state machines.
type Controller struct {
	svc *reminders.Service
	loc *time.Location
}

func NewController(svc *reminders.Service, loc *time.Location) *Controller {
	return &Controller{svc: svc, loc: loc}
}

// ClearAll cancels every pending flow. New flows call this first so a user
// is never awaiting two confirmations at once.
func (c *Controller) ClearAll(cs *convctx.Set) {
	cs.Clear(AllTags()...)
}

// BeginDelete moves a uniquely identified reminder into the delete
// confirmation step.
func (c *Controller) BeginDelete(cs *convctx.Set, r *model.Reminder) string {
	c.ClearAll(cs)
	when := timeparse.FormatDisplay(r.RemindAt, c.loc)
	cs.Emit(TagDeleteConfirmation, confirmationLifespan, map[string]string{
		"id":   r.ID,
		"task": r.Task,
		"when": when,
	})
	return fmt.Sprintf("You'd like me to delete the reminder to '%s' at %s. Is that right?", r.Task, when)
}

// ConfirmDelete applies a pending deletion. A reminder that vanished between
// turns counts as already gone, not as a failure.
func (c *Controller) ConfirmDelete(ctx context.Context, cs *convctx.Set, ownerID string) (string, error) {
	id, ok := cs.Param(TagDeleteConfirmation, "id")
	if !ok {
		return "I don't have a deletion waiting for confirmation. What would you like to do?", nil
	}
	task, _ := cs.Param(TagDeleteConfirmation, "task")

	err := c.svc.Delete(ctx, ownerID, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", err
	}
	c.ClearAll(cs)
	return fmt.Sprintf("Done! I've deleted the reminder to '%s'.", task), nil
}

// CancelDelete abandons a pending deletion without mutating anything.
func (c *Controller) CancelDelete(cs *convctx.Set) string {
	c.ClearAll(cs)
	return "Okay, I won't delete anything."
}

// BeginUpdate moves a uniquely identified reminder toward the update
// confirmation step. When the new time is not known yet it asks for it
// first.
func (c *Controller) BeginUpdate(cs *convctx.Set, r *model.Reminder, newAt *time.Time) string {
	c.ClearAll(cs)
	oldWhen := timeparse.FormatDisplay(r.RemindAt, c.loc)
	if newAt == nil {
		cs.Emit(TagUpdateNewTime, confirmationLifespan, map[string]string{
			"id":   r.ID,
			"task": r.Task,
			"when": oldWhen,
		})
		return fmt.Sprintf("Okay! The reminder to '%s' is set for %s. What time should I move it to?", r.Task, oldWhen)
	}
	return c.askUpdateConfirmation(cs, r.ID, r.Task, oldWhen, *newAt)
}

// CaptureNewTime advances an update that was waiting for its new time.
func (c *Controller) CaptureNewTime(cs *convctx.Set, newAt time.Time) (string, bool) {
	id, ok := cs.Param(TagUpdateNewTime, "id")
	if !ok {
		return "", false
	}
	task, _ := cs.Param(TagUpdateNewTime, "task")
	oldWhen, _ := cs.Param(TagUpdateNewTime, "when")
	cs.Clear(TagUpdateNewTime)
	return c.askUpdateConfirmation(cs, id, task, oldWhen, newAt), true
}

func (c *Controller) askUpdateConfirmation(cs *convctx.Set, id, task, oldWhen string, newAt time.Time) string {
	newWhen := timeparse.FormatDisplay(newAt, c.loc)
	cs.Emit(TagUpdateConfirmation, confirmationLifespan, map[string]string{
		"id":       id,
		"task":     task,
		"old_when": oldWhen,
		"new_when": newWhen,
		"new_time": newAt.Format(time.RFC3339),
	})
	return fmt.Sprintf("You'd like me to move the reminder to '%s' from %s to %s. Is that right?", task, oldWhen, newWhen)
}

// ConfirmUpdate applies a pending time change. The target is re-fetched
// first; a reminder that vanished between turns gets a clear message rather
// than a crash. Re-applying the same instant leaves the reminder unchanged.
func (c *Controller) ConfirmUpdate(ctx context.Context, cs *convctx.Set, ownerID string) (string, error) {
	id, ok := cs.Param(TagUpdateConfirmation, "id")
	if !ok {
		return "I don't have an update waiting for confirmation. What would you like to do?", nil
	}
	task, _ := cs.Param(TagUpdateConfirmation, "task")
	newWhen, _ := cs.Param(TagUpdateConfirmation, "new_when")
	rawNew, _ := cs.Param(TagUpdateConfirmation, "new_time")

	newAt, err := time.Parse(time.RFC3339, rawNew)
	if err != nil {
		c.ClearAll(cs)
		return "I lost track of the new time. Could you start the update again?", nil
	}

	if _, err := c.svc.Get(ctx, ownerID, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.ClearAll(cs)
			return fmt.Sprintf("Hmm, the reminder to '%s' seems to be gone already, so there's nothing to update.", task), nil
		}
		return "", err
	}
	if err := c.svc.UpdateRemindAt(ctx, ownerID, id, newAt); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.ClearAll(cs)
			return fmt.Sprintf("Hmm, the reminder to '%s' seems to be gone already, so there's nothing to update.", task), nil
		}
		return "", err
	}
	c.ClearAll(cs)
	return fmt.Sprintf("Done! I've moved the reminder to '%s' to %s.", task, newWhen), nil
}

// CancelUpdate abandons a pending update without mutating anything.
func (c *Controller) CancelUpdate(cs *convctx.Set) string {
	c.ClearAll(cs)
	return "Okay, I'll leave the reminder where it is."
}
