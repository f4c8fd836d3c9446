// Package session keeps a user's notification inbox in sync with the server
// for the lifetime of one login.
//
// Mutations are optimistic: local state changes before the gateway call is
// made and is not rolled back if the call fails. The inconsistency window is
// closed by the next poll or refresh.
package session

import (
	"context"
	gosync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/reconcile"
	schedsync "github.com/nhle/inbox/internal/sync"
)

// State is a read-only snapshot of a session.
type State struct {
	UserID              string
	Items               []model.Notification
	UnreadCount         int
	IsLoading           bool
	HasMore             bool
	InitialLoadComplete bool
	LastSync            time.Time
	LastError           *SyncError
	Scheduler           schedsync.Stats
}

// Service wires focus, scheduling, the gateway, and reconciliation together
// for one user. Create one per identity; Stop discards all state.
type Service struct {
	userID string
	gw     gateway.Gateway
	sink   Sink
	clock  clockwork.Clock
	logger *zap.Logger
	cfg    Config
	sched  *schedsync.Scheduler

	mu          gosync.Mutex
	active      bool
	token       uint64
	st          reconcile.State
	offset      int
	hasMore     bool
	loading     int
	loadingMore bool
	lastFull    time.Time
	lastSync    time.Time
	lastErr     *SyncError
	onChange    func()

	// deleted holds IDs removed during this session. Fetches that were in
	// flight when the delete happened must not bring them back.
	deleted map[string]struct{}
	// backlog holds unread IDs seen by the last full sync, including those
	// beyond the loaded pages. They are never reported as arrivals.
	backlog map[string]struct{}
	// watermark is the newest CreatedAt seen by the last full sync. Older
	// items surfacing in a poll already existed.
	watermark time.Time
}

// NewService creates a stopped Service for userID.
func NewService(
	userID string,
	gw gateway.Gateway,
	focus schedsync.FocusSource,
	sink Sink,
	opts ...Option,
) *Service {
	set := newSettings(opts)
	if sink == nil {
		sink = nopSink{}
	}
	return &Service{
		userID: userID,
		gw:     gw,
		sink:   sink,
		clock:  set.clock,
		logger: set.logger.With(zap.String("component", "session")),
		cfg:    set.cfg,
		sched:  set.scheduler(focus),
	}
}

// UserID returns the owner of this session.
func (s *Service) UserID() string { return s.userID }

// OnChange registers fn to be called after every state change. fn may run
// on any goroutine and should call State for the current value.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Start begins polling. The first tick performs the initial load, which
// never produces feedback. Start on a running service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.token++
	s.resetLocked()
	s.mu.Unlock()

	s.sched.Start(s.userID, s.tick)
	s.logger.Info("session started", zap.String("user_id", s.userID))
	s.publish()
}

// Stop cancels polling and discards state. Results of calls still in
// flight are dropped when they resolve. Stop is idempotent.
func (s *Service) Stop() {
	s.sched.Stop()

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.token++
	s.resetLocked()
	s.mu.Unlock()

	s.logger.Info("session stopped", zap.String("user_id", s.userID))
	s.publish()
}

// Pause and Resume drive the scheduler directly, bypassing focus.
func (s *Service) Pause()  { s.sched.Pause() }
func (s *Service) Resume() { s.sched.Resume() }

// State returns a snapshot of the session.
func (s *Service) State() State {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	snap.Scheduler = s.sched.Stats()
	return snap
}

// Refresh replaces local state with page one of all notifications and the
// server's unread count. Refresh produces no feedback.
func (s *Service) Refresh(ctx context.Context) error {
	tok, ok := s.beginLoad()
	if !ok {
		return ErrStopped
	}

	fp, err := s.fetchFirstPage(ctx)
	if err != nil {
		logSyncError(s.logger, s.userID, "refresh", err)
		s.apply(tok, func() {
			s.loading--
			s.lastErr = newSyncError("refresh", err, s.clock.Now())
		})
		return err
	}

	s.apply(tok, func() {
		s.loading--
		s.replaceLocked(fp)
	})
	return nil
}

// LoadMore fetches the next page and appends it. Pages are not new
// arrivals: no feedback, no change to the unread count.
func (s *Service) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	s.loading++
	tok := s.token
	offset := s.offset
	s.mu.Unlock()
	s.publish()

	page, err := s.gw.List(ctx, s.userID, gateway.ListOptions{
		Limit:  s.cfg.PageSize,
		Offset: offset,
	})
	if err != nil {
		logSyncError(s.logger, s.userID, "load-more", err)
		s.apply(tok, func() {
			s.loading--
			s.loadingMore = false
			s.lastErr = newSyncError("load-more", err, s.clock.Now())
		})
		return err
	}

	s.apply(tok, func() {
		s.loading--
		s.loadingMore = false
		s.st, _ = reconcile.Append(s.st, page)
		s.offset += len(page)
		s.hasMore = len(page) >= s.cfg.PageSize
	})
	return nil
}

// MarkAsRead marks one notification read locally, then on the server.
// An already-read notification is left alone. An ID not held locally is
// still sent to the server.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrStopped
	}
	if n, known := reconcile.Lookup(s.st, id); known && n.IsRead {
		s.mu.Unlock()
		return nil
	}
	s.st, _ = reconcile.MarkRead(s.st, id, s.clock.Now())
	s.mu.Unlock()
	s.publish()

	ok, err := s.gw.MarkRead(ctx, id)
	return mutationResult(s.logger, s.userID, "mark-read", id, ok, err)
}

// MarkAllAsRead marks every local notification read and zeroes the counter,
// then asks the server to do the same.
func (s *Service) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrStopped
	}
	s.st = reconcile.MarkAllRead(s.st, s.clock.Now())
	s.mu.Unlock()
	s.publish()

	ok, err := s.gw.MarkAllRead(ctx, s.userID)
	return mutationResult(s.logger, s.userID, "mark-all-read", "", ok, err)
}

// DeleteNotification removes a notification locally, then on the server.
func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.deleted == nil {
		s.deleted = make(map[string]struct{})
	}
	s.deleted[id] = struct{}{}
	var removed bool
	s.st, removed = reconcile.Remove(s.st, id)
	if removed && s.offset > 0 {
		s.offset--
	}
	s.mu.Unlock()
	s.publish()

	ok, err := s.gw.Delete(ctx, id)
	return mutationResult(s.logger, s.userID, "delete", id, ok, err)
}

// tick is the scheduler callback. Until the initial load succeeds it
// refreshes; after that it polls unread items, or resyncs fully when the
// last full sync is older than MaxStaleness.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	initial := s.st.InitialLoadComplete
	stale := s.cfg.MaxStaleness > 0 && s.clock.Since(s.lastFull) >= s.cfg.MaxStaleness
	s.mu.Unlock()

	switch {
	case !initial:
		_ = s.Refresh(ctx)
	case stale:
		s.resync(ctx)
	default:
		s.poll(ctx)
	}
}

// poll fetches unread notifications and merges the new ones.
func (s *Service) poll(ctx context.Context) {
	tok, ok := s.sessionToken()
	if !ok {
		return
	}

	batch, err := s.gw.List(ctx, s.userID, gateway.ListOptions{
		Limit:      s.cfg.PageSize,
		UnreadOnly: true,
	})
	if err != nil {
		logSyncError(s.logger, s.userID, "poll", err)
		s.apply(tok, func() {
			s.lastErr = newSyncError("poll", err, s.clock.Now())
		})
		return
	}

	var digest reconcile.Digest
	var notify bool
	s.apply(tok, func() {
		s.st, digest = reconcile.Merge(s.st, s.arrivalsLocked(batch))
		// Items prepended here shift the server's offsets.
		s.offset += digest.NewCount
		notify = reconcile.ShouldNotify(s.st.InitialLoadComplete, digest)
		s.lastSync = s.clock.Now()
		s.lastErr = nil
	})
	if notify {
		s.emit(digest)
	}
}

// resync replaces state like Refresh but still reports genuinely new
// unread items.
func (s *Service) resync(ctx context.Context) {
	tok, ok := s.beginLoad()
	if !ok {
		return
	}

	fp, err := s.fetchFirstPage(ctx)
	if err != nil {
		logSyncError(s.logger, s.userID, "resync", err)
		s.apply(tok, func() {
			s.loading--
			s.lastErr = newSyncError("resync", err, s.clock.Now())
		})
		return
	}

	var digest reconcile.Digest
	var notify bool
	s.apply(tok, func() {
		s.loading--
		_, digest = reconcile.Merge(s.st, s.arrivalsLocked(fp.items))
		notify = reconcile.ShouldNotify(s.st.InitialLoadComplete, digest)
		s.replaceLocked(fp)
	})
	if notify {
		s.emit(digest)
	}
	s.logger.Debug("forced resync", zap.String("user_id", s.userID), zap.Int("new", digest.NewCount))
}

// firstPage is the result of a full sync.
type firstPage struct {
	items  []model.Notification
	unread []model.Notification
	count  int
}

// fetchFirstPage loads page one of all notifications, page one of unread
// notifications, and the unread count concurrently.
func (s *Service) fetchFirstPage(ctx context.Context) (firstPage, error) {
	var fp firstPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fp.items, err = s.gw.List(gctx, s.userID, gateway.ListOptions{Limit: s.cfg.PageSize})
		return err
	})
	g.Go(func() error {
		var err error
		fp.unread, err = s.gw.List(gctx, s.userID, gateway.ListOptions{
			Limit:      s.cfg.PageSize,
			UnreadOnly: true,
		})
		return err
	})
	g.Go(func() error {
		var err error
		fp.count, err = s.gw.UnreadCount(gctx, s.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return firstPage{}, err
	}
	return fp, nil
}

// arrivalsLocked drops the items of batch that cannot be new arrivals:
// deleted this session, or already present at the last full sync.
func (s *Service) arrivalsLocked(batch []model.Notification) []model.Notification {
	out := make([]model.Notification, 0, len(batch))
	for _, n := range batch {
		if _, ok := s.deleted[n.ID]; ok {
			continue
		}
		if _, ok := s.backlog[n.ID]; ok {
			continue
		}
		if n.CreatedAt.Before(s.watermark) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// emit sends one toast, plus one sound when enabled, for a whole digest.
func (s *Service) emit(d reconcile.Digest) {
	toast := reconcile.ToastFor(d)
	s.sink.Emit(Event{
		Kind:   KindToast,
		UserID: s.userID,
		Title:  toast.Title,
		Body:   toast.Body,
		Count:  d.NewUnreadCount,
		Sample: d.Sample,
	})
	if s.cfg.Sound {
		s.sink.Emit(Event{
			Kind:   KindSound,
			UserID: s.userID,
			Count:  d.NewUnreadCount,
			Sample: d.Sample,
		})
	}
	s.logger.Info("new notifications", zap.String("user_id", s.userID), zap.Int("count", d.NewUnreadCount))
}

func (s *Service) replaceLocked(fp firstPage) {
	page := make([]model.Notification, 0, len(fp.items))
	for _, n := range fp.items {
		if _, ok := s.deleted[n.ID]; !ok {
			page = append(page, n)
		}
	}
	s.st = reconcile.State{
		Items:               reconcile.Dedup(page),
		UnreadCount:         fp.count,
		InitialLoadComplete: true,
	}
	s.offset = len(page)
	s.hasMore = len(fp.items) >= s.cfg.PageSize

	s.backlog = make(map[string]struct{}, len(fp.unread))
	s.watermark = time.Time{}
	for _, n := range fp.unread {
		s.backlog[n.ID] = struct{}{}
	}
	for _, batch := range [][]model.Notification{fp.items, fp.unread} {
		for _, n := range batch {
			if n.CreatedAt.After(s.watermark) {
				s.watermark = n.CreatedAt
			}
		}
	}

	now := s.clock.Now()
	s.lastFull = now
	s.lastSync = now
	s.lastErr = nil
}

func (s *Service) resetLocked() {
	s.st = reconcile.State{}
	s.offset = 0
	s.hasMore = false
	s.loading = 0
	s.loadingMore = false
	s.lastFull = time.Time{}
	s.lastSync = time.Time{}
	s.lastErr = nil
	s.deleted = nil
	s.backlog = nil
	s.watermark = time.Time{}
}

func (s *Service) sessionToken() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.active
}

// beginLoad marks a visible load in progress.
func (s *Service) beginLoad() (uint64, bool) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return 0, false
	}
	s.loading++
	tok := s.token
	s.mu.Unlock()
	s.publish()
	return tok, true
}

// apply runs fn under the lock only if tok still names the running session,
// then publishes. Results for a stopped session are dropped here.
func (s *Service) apply(tok uint64, fn func()) bool {
	s.mu.Lock()
	if !s.active || s.token != tok {
		s.mu.Unlock()
		s.logger.Debug("dropping result for stopped session", zap.String("user_id", s.userID))
		return false
	}
	fn()
	s.mu.Unlock()
	s.publish()
	return true
}

func (s *Service) publish() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Service) snapshotLocked() State {
	items := make([]model.Notification, len(s.st.Items))
	copy(items, s.st.Items)
	var lastErr *SyncError
	if s.lastErr != nil {
		e := *s.lastErr
		lastErr = &e
	}
	return State{
		UserID:              s.userID,
		Items:               items,
		UnreadCount:         s.st.UnreadCount,
		IsLoading:           s.loading > 0,
		HasMore:             s.hasMore,
		InitialLoadComplete: s.st.InitialLoadComplete,
		LastSync:            s.lastSync,
		LastError:           lastErr,
	}
}
