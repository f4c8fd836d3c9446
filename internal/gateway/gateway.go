// Package gateway defines the boundary between the sync engine and the
// remote notification store.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/inbox/internal/model"
)

// ListOptions filters and paginates a List call. The zero value means
// "first page, all statuses, all types".
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
	Type       string
}

// Gateway is the contract every notification backend must implement.
// Implementations perform no local caching.
type Gateway interface {
	// List returns the user's notifications in server order, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)

	// UnreadCount returns the server's authoritative unread count.
	UnreadCount(ctx context.Context, userID string) (int, error)

	// Create stores a new notification and returns it with its server-assigned ID.
	Create(ctx context.Context, opts model.CreateOptions) (*model.Notification, error)

	// CreateFromTemplate renders a named template with vars and stores the result.
	CreateFromTemplate(
		ctx context.Context,
		templateName string,
		userID string,
		vars map[string]string,
		opts model.TemplateOptions,
	) (*model.Notification, error)

	// MarkRead marks one notification read. It reports whether the server
	// accepted the mutation.
	MarkRead(ctx context.Context, notificationID string) (bool, error)

	// MarkAllRead marks every unread notification of the user read.
	MarkAllRead(ctx context.Context, userID string) (bool, error)

	// Delete removes one notification.
	Delete(ctx context.Context, notificationID string) (bool, error)
}

// NetworkError indicates the gateway could not reach the server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates the server was reached but rejected the request.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d)", e.Status)
	}
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// IsNetworkError reports whether err (or any error in its chain) is a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsServerError reports whether err (or any error in its chain) is a ServerError.
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}

// IsAuthError reports whether err is a ServerError for a 401 or 403 response.
func IsAuthError(err error) bool {
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		return false
	}
	return srvErr.Status == http.StatusUnauthorized || srvErr.Status == http.StatusForbidden
}

// Error kinds returned by Kind.
const (
	KindNetwork = "network"
	KindServer  = "server"
	KindAuth    = "auth"
	KindOther   = "other"
)

// Kind classifies err for logs and status display.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAuthError(err):
		return KindAuth
	case IsServerError(err):
		return KindServer
	case IsNetworkError(err):
		return KindNetwork
	default:
		return KindOther
	}
}
