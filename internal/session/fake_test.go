package session

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/model"
)

// fakeGateway is an in-memory gateway. Items are held newest first.
type fakeGateway struct {
	mu        gosync.Mutex
	items     []model.Notification
	listErr   error
	countErr  error
	mutateOK  bool
	mutateErr error
	calls     map[string]int

	// listGate, when set, makes unread-only List calls wait until closed.
	listGate chan struct{}
	// holdGate, when set, makes unread-only List calls read their result
	// first and then wait until closed before returning it.
	holdGate chan struct{}
	// mutateGate, when set, makes mutations wait until closed.
	mutateGate chan struct{}
}

func newFakeGateway(items ...model.Notification) *fakeGateway {
	return &fakeGateway{
		items:    items,
		mutateOK: true,
		calls:    map[string]int{},
	}
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) prepend(items ...model.Notification) {
	f.mu.Lock()
	f.items = append(append([]model.Notification{}, items...), f.items...)
	f.mu.Unlock()
}

func (f *fakeGateway) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeGateway) List(ctx context.Context, userID string, opts gateway.ListOptions) ([]model.Notification, error) {
	if opts.UnreadOnly {
		f.record("unread")
	} else {
		f.record("list")
	}

	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil && opts.UnreadOnly {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &gateway.NetworkError{Op: "list", Err: ctx.Err()}
		}
	}

	out, hold, err := f.snapshot(opts)
	if err != nil {
		return nil, err
	}
	if hold != nil && opts.UnreadOnly {
		f.record("held")
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, &gateway.NetworkError{Op: "list", Err: ctx.Err()}
		}
	}
	return out, nil
}

func (f *fakeGateway) snapshot(opts gateway.ListOptions) ([]model.Notification, chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	var out []model.Notification
	for _, n := range f.items {
		if opts.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	if opts.Offset >= len(out) {
		return nil, f.holdGate, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return append([]model.Notification(nil), out...), f.holdGate, nil
}

func (f *fakeGateway) UnreadCount(ctx context.Context, userID string) (int, error) {
	f.record("count")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, it := range f.items {
		if !it.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeGateway) Create(ctx context.Context, opts model.CreateOptions) (*model.Notification, error) {
	f.record("create")
	n := model.Notification{ID: fmt.Sprintf("c%d", f.Calls("create")), UserID: opts.UserID, Title: opts.Title}
	f.prepend(n)
	return &n, nil
}

func (f *fakeGateway) CreateFromTemplate(ctx context.Context, name, userID string, vars map[string]string, opts model.TemplateOptions) (*model.Notification, error) {
	return f.Create(ctx, model.CreateOptions{UserID: userID, Title: name})
}

func (f *fakeGateway) mutate(op string, apply func()) (bool, error) {
	f.record(op)
	f.mu.Lock()
	gate := f.mutateGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return false, f.mutateErr
	}
	if f.mutateOK {
		apply()
	}
	return f.mutateOK, nil
}

func (f *fakeGateway) MarkRead(ctx context.Context, id string) (bool, error) {
	return f.mutate("mark-read", func() {
		for i := range f.items {
			if f.items[i].ID == id {
				f.items[i] = f.items[i].MarkRead(time.Now())
			}
		}
	})
}

func (f *fakeGateway) MarkAllRead(ctx context.Context, userID string) (bool, error) {
	return f.mutate("mark-all-read", func() {
		for i := range f.items {
			f.items[i] = f.items[i].MarkRead(time.Now())
		}
	})
}

func (f *fakeGateway) Delete(ctx context.Context, id string) (bool, error) {
	return f.mutate("delete", func() {
		for i := range f.items {
			if f.items[i].ID == id {
				f.items = append(f.items[:i], f.items[i+1:]...)
				return
			}
		}
	})
}

// recordingSink captures emitted feedback.
type recordingSink struct {
	mu     gosync.Mutex
	events []Event
}

func (r *recordingSink) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) Events(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func notif(id string) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u1",
		Title:     "title " + id,
		CreatedAt: epoch,
	}
}

func readNotif(id string) model.Notification {
	n := notif(id)
	n.IsRead = true
	return n
}

// notifAt is an unread notification created minutes after epoch.
func notifAt(id string, minutes int) model.Notification {
	n := notif(id)
	n.CreatedAt = epoch.Add(time.Duration(minutes) * time.Minute)
	return n
}

// advance moves the fake clock one interval once a timer is armed.
func advance(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(d)
}
