package testutil

import (
	"context"
	"testing"

	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedNotifications creates one notification per title for userID, oldest
// first, and returns them in creation order.
func SeedNotifications(t *testing.T, s store.Store, userID string, titles ...string) []model.Notification {
	t.Helper()

	out := make([]model.Notification, 0, len(titles))
	for _, title := range titles {
		n, err := s.CreateNotification(context.Background(), model.CreateOptions{
			UserID: userID,
			Title:  title,
		})
		if err != nil {
			t.Fatalf("seeding notification %q: %v", title, err)
		}
		out = append(out, n)
	}
	return out
}
