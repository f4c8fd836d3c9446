package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	schedsync "github.com/nhle/inbox/internal/sync"
)

// Config tunes a session.
type Config struct {
	// PageSize is the number of notifications fetched per page.
	PageSize int

	// Interval is the polling period while focused.
	Interval time.Duration

	// MaxStaleness forces a full resync once the last one is this old.
	// Zero disables forced resyncs.
	MaxStaleness time.Duration

	// Sound emits a sound event alongside every toast.
	Sound bool
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		PageSize:     20,
		Interval:     schedsync.DefaultInterval,
		MaxStaleness: 5 * time.Minute,
		Sound:        true,
	}
}

type settings struct {
	clock  clockwork.Clock
	logger *zap.Logger
	cfg    Config
}

// Option configures a Service or UnreadCounter.
type Option func(*settings)

// WithClock sets the clock used for polling and staleness.
func WithClock(c clockwork.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.cfg.PageSize <= 0 {
		s.cfg.PageSize = 20
	}
	if s.cfg.Interval <= 0 {
		s.cfg.Interval = schedsync.DefaultInterval
	}
	return s
}

func (s settings) scheduler(focus schedsync.FocusSource) *schedsync.Scheduler {
	return schedsync.NewScheduler(focus,
		schedsync.WithClock(s.clock),
		schedsync.WithLogger(s.logger),
		schedsync.WithInterval(s.cfg.Interval),
	)
}
