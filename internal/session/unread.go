package session

import (
	"context"
	gosync "sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/gateway"
	schedsync "github.com/nhle/inbox/internal/sync"
)

// UnreadCounter tracks only the unread count for one user, for surfaces
// that show a badge and nothing else. It polls on the same focus-aware
// schedule as Service but holds no items.
type UnreadCounter struct {
	userID string
	gw     gateway.Gateway
	clock  clockwork.Clock
	logger *zap.Logger
	sched  *schedsync.Scheduler

	mu       gosync.Mutex
	active   bool
	token    uint64
	count    int
	known    bool
	lastErr  *SyncError
	onChange func()
}

// NewUnreadCounter creates a stopped UnreadCounter for userID.
func NewUnreadCounter(
	userID string,
	gw gateway.Gateway,
	focus schedsync.FocusSource,
	opts ...Option,
) *UnreadCounter {
	set := newSettings(opts)
	return &UnreadCounter{
		userID: userID,
		gw:     gw,
		clock:  set.clock,
		logger: set.logger.With(zap.String("component", "unread-counter")),
		sched:  set.scheduler(focus),
	}
}

// UserID returns the owner of this counter.
func (u *UnreadCounter) UserID() string { return u.userID }

// OnChange registers fn to be called whenever the count changes.
func (u *UnreadCounter) OnChange(fn func()) {
	u.mu.Lock()
	u.onChange = fn
	u.mu.Unlock()
}

// Start begins polling the unread count.
func (u *UnreadCounter) Start() {
	u.mu.Lock()
	if u.active {
		u.mu.Unlock()
		return
	}
	u.active = true
	u.token++
	u.count = 0
	u.known = false
	u.lastErr = nil
	u.mu.Unlock()

	u.sched.Start(u.userID, func(ctx context.Context) { _ = u.Refresh(ctx) })
}

// Stop cancels polling and forgets the count.
func (u *UnreadCounter) Stop() {
	u.sched.Stop()

	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return
	}
	u.active = false
	u.token++
	u.count = 0
	u.known = false
	fn := u.onChange
	u.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Count returns the last known unread count and whether one has been
// fetched yet.
func (u *UnreadCounter) Count() (int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count, u.known
}

// LastError returns the latest fetch failure, if the last fetch failed.
func (u *UnreadCounter) LastError() *SyncError {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastErr
}

// Stats returns the scheduler's activity snapshot.
func (u *UnreadCounter) Stats() schedsync.Stats {
	return u.sched.Stats()
}

// Refresh fetches the authoritative count now.
func (u *UnreadCounter) Refresh(ctx context.Context) error {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return ErrStopped
	}
	tok := u.token
	u.mu.Unlock()

	n, err := u.gw.UnreadCount(ctx, u.userID)

	u.mu.Lock()
	if !u.active || u.token != tok {
		u.mu.Unlock()
		return ErrStopped
	}
	changed := false
	if err != nil {
		u.lastErr = newSyncError("unread-count", err, u.clock.Now())
	} else {
		changed = !u.known || n != u.count
		u.count = n
		u.known = true
		u.lastErr = nil
	}
	fn := u.onChange
	u.mu.Unlock()

	if err != nil {
		logSyncError(u.logger, u.userID, "unread-count", err)
		return err
	}
	if changed && fn != nil {
		fn()
	}
	return nil
}
