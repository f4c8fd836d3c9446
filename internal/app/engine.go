package app

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/focus"
	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/session"
)

// actionTimeout bounds a single user-initiated gateway call.
const actionTimeout = 15 * time.Second

// stateMsg carries a fresh session snapshot to the UI. active is false when
// nobody is logged in.
type stateMsg struct {
	state  session.State
	active bool
}

// feedbackMsg carries a toast or sound event to the UI.
type feedbackMsg session.Event

// actionDoneMsg reports the outcome of a user-initiated session call.
type actionDoneMsg struct {
	op  string
	err error
}

// GatewayFactory builds the gateway for one login.
type GatewayFactory func(baseURL, token string) gateway.Gateway

// engine owns the long-lived sync machinery shared by every copy of the
// root model: focus, identity, and the per-user session.
type engine struct {
	cfg        *model.AppConfig
	keyring    credential.Keyring
	logger     *zap.Logger
	clock      clockwork.Clock
	newGateway GatewayFactory

	tracker  *focus.Tracker
	identity *identity.Provider
	sessions *session.Manager[*session.Service]

	changes chan struct{}
	events  chan session.Event
	done    chan struct{}
	once    gosync.Once
}

func newEngine(env Env) *engine {
	e := &engine{
		cfg:        env.Config,
		keyring:    env.Keyring,
		logger:     env.Logger,
		clock:      env.Clock,
		newGateway: env.NewGateway,
		tracker:    focus.NewTracker(true),
		changes:    make(chan struct{}, 1),
		events:     make(chan session.Event, 16),
		done:       make(chan struct{}),
	}
	e.identity = identity.NewProvider(e.storedUser())
	e.sessions = session.NewManager(e.identity, e.newSession, e.logger)
	return e
}

// storedUser returns the user named by the saved token, or "".
func (e *engine) storedUser() string {
	token, err := e.keyring.Get(credential.TokenKey(e.cfg.Server.Profile))
	if err != nil || token == "" {
		return ""
	}
	userID, err := identity.UserIDFromToken(token)
	if err != nil {
		e.logger.Warn("stored token unusable", zap.Error(err))
		return ""
	}
	return userID
}

func (e *engine) newSession(userID string) *session.Service {
	token, err := e.keyring.Get(credential.TokenKey(e.cfg.Server.Profile))
	if err != nil {
		e.logger.Warn("no token for session", zap.String("user_id", userID), zap.Error(err))
	}

	svc := session.NewService(
		userID,
		e.newGateway(e.cfg.Server.BaseURL, token),
		e.tracker,
		session.SinkFunc(e.emit),
		session.WithClock(e.clock),
		session.WithLogger(e.logger),
		session.WithConfig(session.Config{
			PageSize:     e.cfg.Sync.PageSize,
			Interval:     e.cfg.PollInterval(),
			MaxStaleness: e.cfg.MaxStaleness(),
			Sound:        e.cfg.Feedback.Sound,
		}),
	)
	svc.OnChange(e.notify)
	return svc
}

// notify and emit run on session goroutines and must never block.
func (e *engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

func (e *engine) emit(ev session.Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug("feedback dropped", zap.String("kind", string(ev.Kind)))
	}
}

func (e *engine) start() tea.Cmd {
	return func() tea.Msg {
		e.sessions.Start()
		return nil
	}
}

func (e *engine) shutdown() {
	e.once.Do(func() {
		close(e.done)
		e.sessions.Stop()
	})
}

func (e *engine) snapshot() stateMsg {
	svc, ok := e.sessions.Current()
	if !ok {
		return stateMsg{}
	}
	return stateMsg{state: svc.State(), active: true}
}

// waitForChange returns a tea.Cmd that blocks until the session changes.
// It must be re-issued after every stateMsg to keep listening.
func (e *engine) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-e.changes:
			return e.snapshot()
		case <-e.done:
			return nil
		}
	}
}

// waitForEvent returns a tea.Cmd that blocks until the next feedback event.
func (e *engine) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-e.events:
			return feedbackMsg(ev)
		case <-e.done:
			return nil
		}
	}
}

// call runs fn against the current session off the UI goroutine.
func (e *engine) call(op string, fn func(context.Context, *session.Service) error) tea.Cmd {
	return func() tea.Msg {
		svc, ok := e.sessions.Current()
		if !ok {
			return actionDoneMsg{op: op, err: session.ErrStopped}
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{op: op, err: fn(ctx, svc)}
	}
}
