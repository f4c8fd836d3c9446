package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/model"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGateway_ListBuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/u%201/notifications", r.URL.EscapedPath())
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		assert.Equal(t, "true", r.URL.Query().Get("unread_only"))
		assert.Equal(t, "task", r.URL.Query().Get("type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, ListResponse{Notifications: []model.Notification{
			{ID: "n2", Title: "second"},
			{ID: "n1", Title: "first"},
		}})
	}))
	defer srv.Close()

	g := New(srv.URL, "tok")
	items, err := g.List(context.Background(), "u 1", gateway.ListOptions{
		Limit: 10, Offset: 20, UnreadOnly: true, Type: "task",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "n2", items[0].ID)
}

func TestGateway_ListZeroOptionsSendsNoQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, ListResponse{})
	}))
	defer srv.Close()

	items, err := New(srv.URL, "").List(context.Background(), "u1", gateway.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGateway_Mutations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, OKResponse{OK: true})
	})
	mux.HandleFunc("PUT /api/v1/users/u1/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, OKResponse{OK: false})
	})
	mux.HandleFunc("DELETE /api/v1/notifications/n1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, OKResponse{OK: true})
	})
	mux.HandleFunc("GET /api/v1/users/u1/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, CountResponse{Count: 7})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := New(srv.URL, "tok")
	ctx := context.Background()

	ok, err := g.MarkRead(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Delete(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := g.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestGateway_CreateFromTemplateSendsVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications/template", r.URL.Path)

		var req model.TemplateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "task_assigned", req.Template)
		assert.Equal(t, "u1", req.UserID)
		assert.Equal(t, "Fix login", req.Variables["task"])
		assert.Equal(t, model.PriorityHigh, req.Priority)

		writeJSON(t, w, http.StatusCreated, NotificationResponse{Notification: model.Notification{
			ID: "n9", UserID: "u1", Title: "Task assigned",
		}})
	}))
	defer srv.Close()

	n, err := New(srv.URL, "tok").CreateFromTemplate(
		context.Background(), "task_assigned", "u1",
		map[string]string{"task": "Fix login"},
		model.TemplateOptions{Priority: model.PriorityHigh},
	)
	require.NoError(t, err)
	assert.Equal(t, "n9", n.ID)
}

func TestGateway_ServerErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad").UnreadCount(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, gateway.IsServerError(err))
	assert.True(t, gateway.IsAuthError(err))
	assert.Contains(t, err.Error(), "invalid token")
}

func TestGateway_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "tok").List(context.Background(), "u1", gateway.ListOptions{})
	require.Error(t, err)
	assert.True(t, gateway.IsNetworkError(err))
	assert.Equal(t, gateway.KindNetwork, gateway.Kind(err))
}

func TestClient_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, http.StatusOK, CountResponse{Count: 2})
	}))
	defer srv.Close()

	n, err := New(srv.URL, "tok").UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, retryAfterDuration(resp, 0))
	assert.Equal(t, 4*time.Second, retryAfterDuration(resp, 2))
	assert.Equal(t, 30*time.Second, retryAfterDuration(resp, 10))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfterDuration(resp, 0))
}
