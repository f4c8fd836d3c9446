package session

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/gateway"
)

// ErrStopped is returned by operations on a session that is not running.
var ErrStopped = errors.New("session not running")

// ErrNotAccepted means the server answered a mutation with ok=false.
var ErrNotAccepted = errors.New("mutation not accepted by server")

// MutationError reports a mark-read, mark-all-read, or delete call that
// failed after local state was already updated. The local change is kept;
// the next refresh or poll converges on the server's state.
type MutationError struct {
	Op  string
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// SyncError describes the latest failed sync for status display.
type SyncError struct {
	Op      string
	Kind    string
	Message string
	At      time.Time
}

func newSyncError(op string, err error, at time.Time) *SyncError {
	return &SyncError{
		Op:      op,
		Kind:    gateway.Kind(err),
		Message: err.Error(),
		At:      at,
	}
}

// logSyncError logs a failed fetch. Unreachable servers and rejected
// requests get distinct messages so they can be told apart in the log.
func logSyncError(logger *zap.Logger, userID, op string, err error) {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("op", op),
		zap.String("error_kind", gateway.Kind(err)),
		zap.Error(err),
	}
	switch {
	case gateway.IsNetworkError(err):
		logger.Warn("notification server unreachable", fields...)
	case gateway.IsServerError(err):
		logger.Error("notification server rejected request", fields...)
	default:
		logger.Error("notification sync failed", fields...)
	}
}

// mutationResult turns a gateway mutation outcome into an error, logging
// any failure. Local state is never rolled back.
func mutationResult(logger *zap.Logger, userID, op, id string, ok bool, err error) error {
	if err != nil {
		logger.Warn("optimistic mutation failed, keeping local state",
			zap.String("user_id", userID),
			zap.String("op", op),
			zap.String("notification_id", id),
			zap.String("error_kind", gateway.Kind(err)),
			zap.Error(err),
		)
		return &MutationError{Op: op, ID: id, Err: err}
	}
	if !ok {
		logger.Warn("optimistic mutation not accepted, keeping local state",
			zap.String("user_id", userID),
			zap.String("op", op),
			zap.String("notification_id", id),
		)
		return &MutationError{Op: op, ID: id, Err: ErrNotAccepted}
	}
	return nil
}
