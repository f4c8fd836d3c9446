// Package reconcile merges fetched notification batches into session state.
//
// Every function here is pure and never modifies its inputs, so callers may
// apply a result to whatever state they hold when a fetch resolves.
package reconcile

import (
	"fmt"
	"time"

	"github.com/nhle/inbox/internal/model"
)

// State is the in-session view of a user's inbox.
type State struct {
	// Items is ordered newest-known first.
	Items []model.Notification

	// UnreadCount tracks unread items, reconciled against the server's
	// authoritative count on refresh.
	UnreadCount int

	// InitialLoadComplete gates user-visible feedback.
	InitialLoadComplete bool
}

// Digest summarizes one merge for feedback decisions.
type Digest struct {
	// NewCount is the number of genuinely new items merged.
	NewCount int

	// NewUnreadCount is how many of the new items are unread.
	NewUnreadCount int

	// Sample is the first new item, or nil when nothing changed.
	Sample *model.Notification
}

// Changed reports whether the merge added anything.
func (d Digest) Changed() bool {
	return d.NewCount > 0
}

// Merge prepends the items of batch whose IDs are not already in st,
// preserving the batch's relative order. Known items are neither re-merged
// nor reordered. Duplicate IDs within batch are collapsed to the first.
func Merge(st State, batch []model.Notification) (State, Digest) {
	seen := make(map[string]struct{}, len(st.Items)+len(batch))
	for _, n := range st.Items {
		seen[n.ID] = struct{}{}
	}

	var fresh []model.Notification
	unread := 0
	for _, n := range batch {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		fresh = append(fresh, n)
		if !n.IsRead {
			unread++
		}
	}

	if len(fresh) == 0 {
		return st, Digest{}
	}

	items := make([]model.Notification, 0, len(fresh)+len(st.Items))
	items = append(items, fresh...)
	items = append(items, st.Items...)

	next := State{
		Items:               items,
		UnreadCount:         st.UnreadCount + unread,
		InitialLoadComplete: st.InitialLoadComplete,
	}
	sample := fresh[0]
	return next, Digest{
		NewCount:       len(fresh),
		NewUnreadCount: unread,
		Sample:         &sample,
	}
}

// ShouldNotify reports whether a merge digest warrants feedback. Nothing is
// emitted until the initial load has completed.
func ShouldNotify(initialLoadComplete bool, d Digest) bool {
	return initialLoadComplete && d.NewUnreadCount > 0
}

// Toast is the text of a single combined feedback toast.
type Toast struct {
	Title string
	Body  string
}

// ToastFor builds one toast for a whole digest: singular for exactly one new
// unread item, count-bearing otherwise.
func ToastFor(d Digest) Toast {
	if d.NewUnreadCount == 1 && d.Sample != nil {
		return Toast{Title: "New Notification", Body: d.Sample.Title}
	}
	return Toast{
		Title: fmt.Sprintf("%d New Notifications", d.NewUnreadCount),
		Body:  fmt.Sprintf("You have %d new unread notifications", d.NewUnreadCount),
	}
}

// MarkRead flags one item read. It returns changed=false when the item is
// unknown or already read.
func MarkRead(st State, id string, at time.Time) (State, bool) {
	idx := indexOf(st.Items, id)
	if idx < 0 || st.Items[idx].IsRead {
		return st, false
	}
	items := clone(st.Items)
	items[idx] = items[idx].MarkRead(at)
	return State{
		Items:               items,
		UnreadCount:         max(st.UnreadCount-1, 0),
		InitialLoadComplete: st.InitialLoadComplete,
	}, true
}

// MarkAllRead flags every item read and zeroes the counter.
func MarkAllRead(st State, at time.Time) State {
	items := clone(st.Items)
	for i := range items {
		items[i] = items[i].MarkRead(at)
	}
	return State{
		Items:               items,
		UnreadCount:         0,
		InitialLoadComplete: st.InitialLoadComplete,
	}
}

// Remove drops one item, decrementing the counter if it was unread.
func Remove(st State, id string) (State, bool) {
	idx := indexOf(st.Items, id)
	if idx < 0 {
		return st, false
	}
	unread := st.UnreadCount
	if !st.Items[idx].IsRead {
		unread = max(unread-1, 0)
	}
	items := make([]model.Notification, 0, len(st.Items)-1)
	items = append(items, st.Items[:idx]...)
	items = append(items, st.Items[idx+1:]...)
	return State{
		Items:               items,
		UnreadCount:         unread,
		InitialLoadComplete: st.InitialLoadComplete,
	}, true
}

// Append adds a page to the tail, skipping known IDs. The counter is left
// alone: older pages are not new, and the server count already covers them.
// It returns how many items were added.
func Append(st State, page []model.Notification) (State, int) {
	seen := make(map[string]struct{}, len(st.Items)+len(page))
	for _, n := range st.Items {
		seen[n.ID] = struct{}{}
	}
	items := clone(st.Items)
	added := 0
	for _, n := range page {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		items = append(items, n)
		added++
	}
	if added == 0 {
		return st, 0
	}
	return State{
		Items:               items,
		UnreadCount:         st.UnreadCount,
		InitialLoadComplete: st.InitialLoadComplete,
	}, added
}

// Dedup returns items with later duplicates of an ID removed.
func Dedup(items []model.Notification) []model.Notification {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CountUnread counts unread items.
func CountUnread(items []model.Notification) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// Lookup returns the item with the given ID.
func Lookup(st State, id string) (model.Notification, bool) {
	if idx := indexOf(st.Items, id); idx >= 0 {
		return st.Items[idx], true
	}
	return model.Notification{}, false
}

func indexOf(items []model.Notification, id string) int {
	for i, n := range items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func clone(items []model.Notification) []model.Notification {
	out := make([]model.Notification, len(items))
	copy(out, items)
	return out
}
