package session

import "github.com/nhle/inbox/internal/model"

// Kind is the type of a feedback event.
type Kind string

const (
	KindToast Kind = "toast"
	KindSound Kind = "sound"
)

// Event is one user-visible signal about newly arrived notifications.
type Event struct {
	Kind   Kind
	UserID string

	// Title and Body are the toast text. Empty for sound events.
	Title string
	Body  string

	// Count is the number of new unread notifications behind the event.
	Count int

	// Sample is the first new notification.
	Sample *model.Notification
}

// Sink receives feedback events. Rendering and playback are up to the sink.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Emit(Event) {}
