package sync

import (
	"context"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/inbox/internal/focus"
)

const testInterval = 30 * time.Second

type harness struct {
	t       *testing.T
	clock   *clockwork.FakeClock
	tracker *focus.Tracker
	sched   *Scheduler
	ticks   atomic.Int32
}

func newHarness(t *testing.T, focused bool) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   clockwork.NewFakeClock(),
		tracker: focus.NewTracker(focused),
	}
	h.sched = NewScheduler(h.tracker,
		WithClock(h.clock),
		WithInterval(testInterval),
		WithLogger(zaptest.NewLogger(t)),
	)
	t.Cleanup(h.sched.Stop)
	return h
}

func (h *harness) start() {
	h.t.Helper()
	require.True(h.t, h.sched.Start("u1", func(context.Context) { h.ticks.Add(1) }))
}

// waitTicks waits until exactly n ticks have completed.
func (h *harness) waitTicks(n int32) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		st := h.sched.Stats()
		return h.ticks.Load() == n && !st.InFlight
	}, time.Second, time.Millisecond, "expected %d ticks, got %d", n, h.ticks.Load())
}

// advance moves the clock by one interval once the ticker is registered.
func (h *harness) advance() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(testInterval)
}

func TestScheduler_StartTicksImmediatelyThenOnInterval(t *testing.T) {
	h := newHarness(t, true)
	h.start()

	h.waitTicks(1)
	assert.Equal(t, PhasePolling, h.sched.Phase())

	h.advance()
	h.waitTicks(2)
	h.advance()
	h.waitTicks(3)

	st := h.sched.Stats()
	assert.Equal(t, 3, st.TicksRun)
	assert.Equal(t, 1, st.ActiveTimers)
	assert.Equal(t, "u1", st.UserID)
}

func TestScheduler_BlurPausesAndFocusResumesImmediately(t *testing.T) {
	h := newHarness(t, true)
	h.start()
	h.waitTicks(1)
	h.advance()
	h.waitTicks(2)

	h.tracker.Report(focus.SignalWindow, false)
	assert.Equal(t, PhasePaused, h.sched.Phase())
	assert.Equal(t, 0, h.sched.Stats().ActiveTimers)

	for i := 0; i < 5; i++ {
		h.clock.Advance(testInterval)
	}
	assert.Never(t, func() bool { return h.ticks.Load() != 2 }, 50*time.Millisecond, 5*time.Millisecond)

	h.tracker.Report(focus.SignalVisibility, true)
	assert.Equal(t, PhasePolling, h.sched.Phase())
	h.waitTicks(3)

	h.advance()
	h.waitTicks(4)
}

func TestScheduler_StartUnfocusedWaitsForFocus(t *testing.T) {
	h := newHarness(t, false)
	h.start()

	assert.Equal(t, PhasePaused, h.sched.Phase())
	assert.Equal(t, 0, h.sched.Stats().ActiveTimers)
	assert.Equal(t, int32(0), h.ticks.Load())

	h.tracker.Report(focus.SignalWindow, true)
	h.waitTicks(1)
	assert.Equal(t, 1, h.sched.Stats().ActiveTimers)
}

func TestScheduler_StartWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t, true)
	h.start()
	h.waitTicks(1)

	assert.False(t, h.sched.Start("u2", func(context.Context) {}))
	assert.Equal(t, "u1", h.sched.Stats().UserID)
	assert.Equal(t, 1, h.sched.Stats().ActiveTimers)
}

func TestScheduler_StopIsIdempotentAndHaltsTicks(t *testing.T) {
	h := newHarness(t, true)
	h.start()
	h.waitTicks(1)

	h.sched.Stop()
	h.sched.Stop()

	st := h.sched.Stats()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 0, st.ActiveTimers)

	h.clock.Advance(3 * testInterval)
	h.tracker.Report(focus.SignalWindow, false)
	h.tracker.Report(focus.SignalWindow, true)
	assert.Never(t, func() bool { return h.ticks.Load() != 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, PhaseIdle, h.sched.Phase(), "focus after stop must not resume")
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	h := newHarness(t, true)
	h.start()
	h.waitTicks(1)
	h.sched.Stop()

	h.start()
	h.waitTicks(2)
	assert.Equal(t, 1, h.sched.Stats().TicksRun, "stats reset per session")
}

func TestScheduler_OverlappingTickIsSkipped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := focus.NewTracker(true)
	sched := NewScheduler(tracker, WithClock(clock), WithInterval(testInterval))
	t.Cleanup(sched.Stop)

	release := make(chan struct{})
	var started atomic.Int32
	sched.Start("u1", func(ctx context.Context) {
		started.Add(1)
		<-release
	})
	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(testInterval)
	require.Eventually(t, func() bool { return sched.Stats().TicksSkipped == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	require.Eventually(t, func() bool { return !sched.Stats().InFlight }, time.Second, time.Millisecond)

	clock.Advance(testInterval)
	require.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, time.Millisecond)
}

func TestScheduler_PanickingTickDoesNotWedge(t *testing.T) {
	h := newHarness(t, true)
	var calls atomic.Int32
	h.sched.Start("u1", func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})

	require.Eventually(t, func() bool { return calls.Load() == 1 && !h.sched.Stats().InFlight }, time.Second, time.Millisecond)
	h.advance()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestScheduler_SingleTimerUnderFocusChurn(t *testing.T) {
	h := newHarness(t, true)

	var mu gosync.Mutex
	maxActive := 0
	check := func() {
		mu.Lock()
		defer mu.Unlock()
		if a := h.sched.Stats().ActiveTimers; a > maxActive {
			maxActive = a
		}
	}

	h.start()
	check()
	for i := 0; i < 20; i++ {
		h.tracker.Report(focus.SignalWindow, i%2 == 1)
		check()
		h.tracker.Report(focus.SignalVisibility, i%3 == 0)
		check()
		if i%7 == 0 {
			h.sched.Stop()
			check()
			h.start()
			check()
		}
	}
	h.sched.Stop()

	assert.LessOrEqual(t, maxActive, 1)
	assert.Equal(t, 0, h.sched.Stats().ActiveTimers)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "polling", PhasePolling.String())
	assert.Equal(t, "paused", PhasePaused.String())
}
