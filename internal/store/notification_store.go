package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/inbox/internal/model"
)

const notificationColumns = `
	id, user_id, title, message, type, priority,
	is_read, read_at, created_at,
	action_url, action_text, expires_at`

// CreateNotification inserts a new unread notification and returns it as
// stored. A UUID is generated and empty type and priority get defaults.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	opts model.CreateOptions,
) (model.Notification, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return model.Notification{}, fmt.Errorf("notification user_id must not be empty")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return model.Notification{}, fmt.Errorf("notification title must not be empty")
	}

	n := model.Notification{
		ID:         uuid.New().String(),
		UserID:     opts.UserID,
		Title:      opts.Title,
		Message:    opts.Message,
		Type:       opts.Type,
		Priority:   opts.Priority,
		CreatedAt:  time.Now().UTC(),
		ActionURL:  opts.ActionURL,
		ActionText: opts.ActionText,
	}
	if n.Type == "" {
		n.Type = "info"
	}
	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if opts.ExpiresAt != nil {
		exp := opts.ExpiresAt.UTC()
		n.ExpiresAt = &exp
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, string(n.Priority),
		boolToInt(n.IsRead), n.ReadAt, n.CreatedAt,
		n.ActionURL, n.ActionText, n.ExpiresAt,
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	return n, nil
}

// GetNotifications returns a user's live notifications, newest first.
func (s *SQLiteStore) GetNotifications(
	ctx context.Context,
	filter NotificationFilter,
) ([]model.Notification, error) {
	conditions := []string{"user_id = ?", "(expires_at IS NULL OR expires_at > ?)"}
	args := []interface{}{filter.UserID, nowOrDefault(filter.Now)}

	if filter.UnreadOnly {
		conditions = append(conditions, "is_read = 0")
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	query := "SELECT " + notificationColumns + " FROM notifications WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", filter.UserID, err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// GetNotificationByID retrieves a single notification, expired or not.
func (s *SQLiteStore) GetNotificationByID(
	ctx context.Context,
	id string,
) (*model.Notification, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}

	return &n, nil
}

// CountUnread returns the number of live unread notifications for a user.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND is_read = 0
			AND (expires_at IS NULL OR expires_at > ?)`,
		userID, nowOrDefault(now),
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications for %s: %w", userID, err)
	}
	return count, nil
}

// MarkNotificationRead flags one notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	id string,
	at time.Time,
) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0",
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification %s as read: %w", id, err)
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM notifications WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("checking notification %s: %w", id, err)
	}
	return exists > 0, nil
}

// MarkAllNotificationsRead flags every unread notification of a user as read.
func (s *SQLiteStore) MarkAllNotificationsRead(
	ctx context.Context,
	userID string,
	at time.Time,
) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0",
		at.UTC(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read for %s: %w", userID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteNotification removes a notification by ID.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting notification %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// scanNotification scans a notification row from sqlx.Rows or sqlx.Row.
func scanNotification(row interface {
	Scan(dest ...interface{}) error
}) (model.Notification, error) {
	var (
		n         model.Notification
		priority  string
		readInt   int
		readAt    *time.Time
		expiresAt *time.Time
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &priority,
		&readInt, &readAt, &n.CreatedAt,
		&n.ActionURL, &n.ActionText, &expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, err
		}
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.Priority = model.Priority(priority)
	n.IsRead = readInt != 0
	n.ReadAt = readAt
	n.ExpiresAt = expiresAt

	return n, nil
}

func nowOrDefault(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}
