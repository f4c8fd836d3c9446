package session

import (
	gosync "sync"

	"go.uber.org/zap"
)

// Lifecycle is a per-user component the Manager starts and stops.
// *Service and *UnreadCounter satisfy it.
type Lifecycle interface {
	Start()
	Stop()
}

// IdentitySource supplies the current user ID ("" when logged out) and
// signals changes. *identity.Provider satisfies it.
type IdentitySource interface {
	Current() string
	Subscribe(fn func(userID string)) (unsubscribe func())
}

// Manager owns at most one running component, bound to the current
// identity. An identity change stops the old component before the new one
// is created and started; a cleared identity leaves nothing running.
type Manager[S Lifecycle] struct {
	identity IdentitySource
	factory  func(userID string) S
	logger   *zap.Logger

	switchMu    gosync.Mutex
	mu          gosync.Mutex
	current     S
	has         bool
	userID      string
	unsubscribe func()
}

// NewManager creates a Manager that builds components with factory.
func NewManager[S Lifecycle](
	identity IdentitySource,
	factory func(userID string) S,
	logger *zap.Logger,
) *Manager[S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager[S]{
		identity: identity,
		factory:  factory,
		logger:   logger,
	}
}

// Start subscribes to identity changes and starts a component for the
// current identity, if any.
func (m *Manager[S]) Start() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.mu.Unlock()
		return
	}
	m.unsubscribe = m.identity.Subscribe(m.switchTo)
	m.mu.Unlock()

	m.switchTo(m.identity.Current())
}

// Stop unsubscribes and stops the running component.
func (m *Manager[S]) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.switchTo("")
}

// Current returns the running component, if any.
func (m *Manager[S]) Current() (S, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.has
}

// UserID returns the identity the running component belongs to.
func (m *Manager[S]) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

func (m *Manager[S]) switchTo(userID string) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if (m.has && m.userID == userID) || (!m.has && userID == "") {
		m.mu.Unlock()
		return
	}
	old, hadOld, oldUser := m.current, m.has, m.userID
	var zero S
	m.current = zero
	m.has = false
	m.userID = ""
	m.mu.Unlock()

	if hadOld {
		old.Stop()
		m.logger.Info("identity session ended", zap.String("user_id", oldUser))
	}
	if userID == "" {
		return
	}

	next := m.factory(userID)
	m.mu.Lock()
	m.current = next
	m.has = true
	m.userID = userID
	m.mu.Unlock()

	next.Start()
	m.logger.Info("identity session started", zap.String("user_id", userID))
}
