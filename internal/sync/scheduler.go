package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Phase is the scheduler's lifecycle state.
type Phase int

const (
	// PhaseIdle means no session is attached.
	PhaseIdle Phase = iota
	// PhasePolling means the repeating timer is armed.
	PhasePolling
	// PhasePaused means a session is attached but no timer is armed.
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhasePaused:
		return "paused"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 30 * time.Second

// tickTimeout is the maximum time allowed for a single tick.
const tickTimeout = 30 * time.Second

// FocusSource reports whether the session is focused and signals changes.
// *focus.Tracker satisfies it.
type FocusSource interface {
	Focused() bool
	Subscribe(fn func(focused bool)) (unsubscribe func())
}

// TickFunc is the fetch-and-merge step run on every tick.
type TickFunc func(ctx context.Context)

// Stats is a snapshot of scheduler activity.
type Stats struct {
	Phase        Phase
	UserID       string
	TicksRun     int
	TicksSkipped int
	ActiveTimers int
	InFlight     bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for the repeating timer.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTickTimeout bounds how long a single tick may run.
func WithTickTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickTimeout = d
		}
	}
}

// Scheduler owns a single repeating timer for one user session. It ticks
// while the session is focused, pauses on blur, and catches up with an
// immediate tick on focus. A tick that would start while the previous one
// is still running is skipped, not queued.
type Scheduler struct {
	clock       clockwork.Clock
	logger      *zap.Logger
	interval    time.Duration
	tickTimeout time.Duration
	focus       FocusSource

	mu           gosync.Mutex
	phase        Phase
	userID       string
	onTick       TickFunc
	unsubscribe  func()
	ticker       clockwork.Ticker
	stopCh       chan struct{}
	generation   uint64
	inFlight     bool
	ticksRun     int
	ticksSkipped int
}

// NewScheduler creates an idle Scheduler driven by the given focus source.
func NewScheduler(focus FocusSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
		interval:    DefaultInterval,
		tickTimeout: tickTimeout,
		focus:       focus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start attaches a session and begins polling. If the session is focused it
// ticks immediately and arms the timer; otherwise it waits in PhasePaused
// for the first focus gain. Start on a non-idle scheduler is a no-op and
// returns false.
func (s *Scheduler) Start(userID string, onTick TickFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return false
	}

	s.userID = userID
	s.onTick = onTick
	s.ticksRun = 0
	s.ticksSkipped = 0
	s.unsubscribe = s.focus.Subscribe(s.onFocusChange)

	if !s.focus.Focused() {
		s.phase = PhasePaused
		s.logger.Debug("scheduler started paused", zap.String("user_id", userID))
		return true
	}

	s.phase = PhasePolling
	s.fireLocked()
	s.armLocked()
	s.logger.Debug("scheduler started", zap.String("user_id", userID), zap.Duration("interval", s.interval))
	return true
}

// Stop cancels the timer, drops the focus subscription, and returns to
// PhaseIdle. A tick already running is left to finish. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}

	s.disarmLocked()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.phase = PhaseIdle
	s.generation++
	s.inFlight = false
	s.onTick = nil
	userID := s.userID
	s.userID = ""
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.logger.Debug("scheduler stopped", zap.String("user_id", userID))
}

// Pause cancels the timer while keeping the session attached.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePolling {
		return
	}
	s.disarmLocked()
	s.phase = PhasePaused
	s.logger.Debug("scheduler paused", zap.String("user_id", s.userID))
}

// Resume ticks immediately and re-arms the timer.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePaused {
		return
	}
	s.phase = PhasePolling
	s.fireLocked()
	s.armLocked()
	s.logger.Debug("scheduler resumed", zap.String("user_id", s.userID))
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if s.ticker != nil {
		active = 1
	}
	return Stats{
		Phase:        s.phase,
		UserID:       s.userID,
		TicksRun:     s.ticksRun,
		TicksSkipped: s.ticksSkipped,
		ActiveTimers: active,
		InFlight:     s.inFlight,
	}
}

func (s *Scheduler) onFocusChange(focused bool) {
	if focused {
		s.Resume()
		return
	}
	s.Pause()
}

// armLocked creates the repeating timer. It never replaces an armed one.
func (s *Scheduler) armLocked() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.clock.NewTicker(s.interval)
	s.stopCh = make(chan struct{})
	go s.loop(s.ticker, s.stopCh)
}

func (s *Scheduler) disarmLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stopCh)
	s.ticker = nil
	s.stopCh = nil
}

// loop forwards timer ticks until stopCh is closed. stopCh is re-checked
// under the lock so no tick fires after disarm returns.
func (s *Scheduler) loop(ticker clockwork.Ticker, stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			select {
			case <-stopCh:
				s.mu.Unlock()
				return
			default:
			}
			s.fireLocked()
			s.mu.Unlock()
		}
	}
}

// fireLocked starts one tick unless the previous one is still running.
func (s *Scheduler) fireLocked() {
	if s.onTick == nil {
		return
	}
	if s.inFlight {
		s.ticksSkipped++
		s.logger.Debug("tick skipped, previous still running", zap.String("user_id", s.userID))
		return
	}
	s.inFlight = true
	s.ticksRun++
	go s.runTick(s.generation, s.userID, s.onTick)
}

func (s *Scheduler) runTick(gen uint64, userID string, fn TickFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", zap.String("user_id", userID), zap.Any("panic", r))
		}
		s.mu.Lock()
		if s.generation == gen {
			s.inFlight = false
		}
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()
	fn(ctx)
}
