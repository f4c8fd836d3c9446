package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/app"
	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/focus"
	"github.com/nhle/inbox/internal/gateway/httpapi"
	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/server"
	"github.com/nhle/inbox/internal/session"
	"github.com/nhle/inbox/internal/store"
	"github.com/nhle/inbox/tests/testutil"
)

const testSecret = "cli-test-secret"

type harness struct {
	t       *testing.T
	ring    *credential.Memory
	cfgPath string
	store   *store.SQLiteStore
	url     string
	tui     *app.Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := testutil.NewTestStore(t)
	srv := httptest.NewServer(server.New(st, server.WithJWTSecret(testSecret)).Handler())
	t.Cleanup(srv.Close)

	return &harness{
		t:       t,
		ring:    credential.NewMemory(),
		cfgPath: filepath.Join(t.TempDir(), "config.yaml"),
		store:   st,
		url:     srv.URL,
	}
}

// run executes the command line and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(Options{
		Keyring: h.ring,
		Logger:  zap.NewNop(),
		Out:     &out,
		Err:     &out,
		RunTUI: func(env app.Env) error {
			h.tui = &env
			return nil
		},
	})
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) token(userID string) string {
	h.t.Helper()
	tok, err := identity.IssueToken(testSecret, userID, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) login(userID string) {
	h.t.Helper()
	_, err := h.run("login", "--server", h.url, "--token", h.token(userID))
	require.NoError(h.t, err)
}

func TestToken(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("token", "alice", "--secret", testSecret)
	require.NoError(t, err)

	claims, err := identity.VerifyToken(testSecret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.User())

	_, err = h.run("token", "alice")
	assert.ErrorContains(t, err, "no signing secret")
}

func TestLogin_StoresTokenAndServer(t *testing.T) {
	h := newHarness(t)
	tok := h.token("alice")

	out, err := h.run("login", "--server", h.url+"/", "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	stored, err := h.ring.Get(credential.TokenKey("default"))
	require.NoError(t, err)
	assert.Equal(t, tok, stored)

	cfg, err := model.LoadConfig(h.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, h.url, cfg.Server.BaseURL)

	_, err = h.run("login", "--server", h.url, "--token", "garbage")
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	out, err := h.run("send", "--title", "Deploy finished", "--message", "v1.4.2 is live", "--priority", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "for alice")

	got, err := h.store.GetNotifications(context.Background(), store.NotificationFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Deploy finished", got[0].Title)
	assert.Equal(t, model.PriorityHigh, got[0].Priority)

	// A token only reaches its own user.
	_, err = h.run("send", "--user", "bob", "--title", "Hi")
	assert.Error(t, err)

	_, err = h.run("send", "--title", "Hi", "--priority", "critical")
	assert.ErrorContains(t, err, "invalid priority")

	_, err = h.run("send")
	assert.Error(t, err)
}

func TestSendTemplate(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	out, err := h.run("send-template", "task_assigned", "--var", "task=Fix login", "--var", "assigner=bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Task assigned: Fix login")

	got, err := h.store.GetNotifications(context.Background(), store.NotificationFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `bob assigned "Fix login" to you.`, got[0].Message)
	assert.Equal(t, "task", got[0].Type)

	_, err = h.run("send-template", "nope")
	assert.Error(t, err)
}

func TestBadge(t *testing.T) {
	h := newHarness(t)
	h.login("alice")
	testutil.SeedNotifications(t, h.store, "alice", "one", "two")

	out, err := h.run("badge")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login("alice")

	out, err := h.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run("badge")
	assert.ErrorContains(t, err, "not logged in")
}

func TestRoot_RunsTUI(t *testing.T) {
	h := newHarness(t)

	_, err := h.run()
	require.NoError(t, err)
	require.NotNil(t, h.tui)
	assert.Equal(t, h.cfgPath, h.tui.ConfigPath)
	assert.Same(t, h.ring, h.tui.Keyring)
}

type lockedBuffer struct {
	mu  gosync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCount(t *testing.T) {
	h := newHarness(t)
	testutil.SeedNotifications(t, h.store, "alice", "one")

	counter := session.NewUnreadCounter("alice",
		httpapi.New(h.url, h.token("alice")),
		focus.NewTracker(true),
	)

	var out lockedBuffer
	done := make(chan struct{})
	exited := make(chan error, 1)
	go func() { exited <- watchCount(done, counter, &out) }()

	assert.Eventually(t, func() bool { return out.String() == "1\n" }, 5*time.Second, 10*time.Millisecond)

	close(done)
	select {
	case err := <-exited:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchCount did not return")
	}
}
