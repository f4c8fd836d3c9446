package model

import "time"

// Priority classifies how urgent a notification is. The sync engine passes
// it through without interpreting it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification represents an alert delivered to a single user's inbox.
type Notification struct {
	// ID is the globally unique, server-assigned identifier.
	ID string `json:"id" db:"id"`

	// UserID is the owner of this notification.
	UserID string `json:"user_id" db:"user_id"`

	// Title is the short headline shown in lists and toasts.
	Title string `json:"title" db:"title"`

	// Message is the human-readable notification body.
	Message string `json:"message" db:"message"`

	// Type is a free-form category (e.g., "info", "task", "mention").
	Type string `json:"type" db:"type"`

	// Priority is the urgency classification.
	Priority Priority `json:"priority" db:"priority"`

	// IsRead indicates whether the user has seen this notification.
	// When false, ReadAt is always nil.
	IsRead bool `json:"is_read" db:"is_read"`

	// ReadAt is when the notification was marked read.
	ReadAt *time.Time `json:"read_at,omitempty" db:"read_at"`

	// CreatedAt is when the server created the notification.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// ActionURL is an optional navigation target for the notification.
	ActionURL string `json:"action_url,omitempty" db:"action_url"`

	// ActionText is the label for ActionURL.
	ActionText string `json:"action_text,omitempty" db:"action_text"`

	// ExpiresAt is when the server stops returning this notification.
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// MarkRead returns a copy of n flagged as read at the given time.
// Already-read notifications are returned unchanged.
func (n Notification) MarkRead(at time.Time) Notification {
	if n.IsRead {
		return n
	}
	t := at.UTC()
	n.IsRead = true
	n.ReadAt = &t
	return n
}

// Expired reports whether the notification has passed its expiry time.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// CreateOptions carries the fields for creating a notification directly.
type CreateOptions struct {
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       string     `json:"type,omitempty"`
	Priority   Priority   `json:"priority,omitempty"`
	ActionURL  string     `json:"action_url,omitempty"`
	ActionText string     `json:"action_text,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// TemplateOptions overrides template defaults when creating a notification
// from a named template.
type TemplateOptions struct {
	Type       string     `json:"type,omitempty"`
	Priority   Priority   `json:"priority,omitempty"`
	ActionURL  string     `json:"action_url,omitempty"`
	ActionText string     `json:"action_text,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// TemplateRequest is the wire shape for create-from-template calls.
type TemplateRequest struct {
	Template  string            `json:"template"`
	UserID    string            `json:"user_id"`
	Variables map[string]string `json:"variables,omitempty"`
	TemplateOptions
}
