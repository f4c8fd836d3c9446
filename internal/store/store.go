package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/inbox/internal/model"
)

// ErrNotFound is returned when a notification does not exist.
var ErrNotFound = errors.New("notification not found")

// NotificationFilter controls filtering and pagination for notification
// queries. Expired notifications (ExpiresAt at or before Now) are always
// excluded.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Type       string
	Limit      int
	Offset     int
	Now        time.Time
}

// Store defines the persistence interface for the notification server.
type Store interface {
	CreateNotification(ctx context.Context, opts model.CreateOptions) (model.Notification, error)
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*model.Notification, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int, error)

	// MarkNotificationRead reports whether the notification exists. Marking
	// an already-read notification keeps its original read time.
	MarkNotificationRead(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkAllNotificationsRead returns how many notifications changed.
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, id string) (bool, error)

	Close() error
}
