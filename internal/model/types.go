package model

import "time"

// ReminderStatus is the lifecycle state of a reminder.
// Completed is terminal; completed reminders are excluded from every query
// this service issues.
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusCompleted ReminderStatus = "completed"
)

// Reminder is the persisted entity. Task is stored normalized (trimmed,
// lower-cased). RemindAt is an absolute instant; display formatting applies
// a fixed zone only at the presentation boundary.
type Reminder struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	Task      string         `json:"task"`
	RemindAt  time.Time      `json:"remindAt"`
	Status    ReminderStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Session maps a conversation session to the owner it belongs to.
// Kept durable so any instance can serve any turn of a conversation.
type Session struct {
	SessionID string    `json:"sessionId"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}
