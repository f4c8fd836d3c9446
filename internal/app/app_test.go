package app

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/server"
	"github.com/nhle/inbox/internal/session"
	schedsync "github.com/nhle/inbox/internal/sync"
	"github.com/nhle/inbox/internal/ui/command"
	"github.com/nhle/inbox/internal/ui/inbox"
	"github.com/nhle/inbox/internal/ui/login"
	"github.com/nhle/inbox/tests/testutil"
)

type fixture struct {
	env  Env
	ring *credential.Memory
	bell *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg, err := model.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	f := &fixture{
		ring: credential.NewMemory(),
		bell: &bytes.Buffer{},
	}
	f.env = Env{
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Keyring:    f.ring,
		Bell:       f.bell,
	}
	return f
}

func (f *fixture) model(t *testing.T) Model {
	t.Helper()
	m := New(f.env)
	t.Cleanup(m.engine.shutdown)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := identity.IssueToken("secret", userID, 0)
	require.NoError(t, err)
	return tok
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestNew_StartsOnLoginWithoutToken(t *testing.T) {
	m := newFixture(t).model(t)
	assert.Equal(t, ViewLogin, m.currentView)
	assert.Contains(t, m.View(), "Log in")
}

func TestNew_StoredTokenSelectsUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ring.Set(credential.TokenKey("default"), token(t, "alice")))

	m := f.model(t)
	assert.Equal(t, ViewList, m.currentView)
	assert.Equal(t, "alice", m.engine.identity.Current())
}

func TestFocusSignals(t *testing.T) {
	m := newFixture(t).model(t)
	tracker := m.engine.tracker
	require.True(t, tracker.Focused())

	m, _ = update(t, m, tea.BlurMsg{})
	assert.False(t, tracker.Focused())

	m, _ = update(t, m, tea.FocusMsg{})
	assert.True(t, tracker.Focused())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlZ})
	assert.False(t, tracker.Focused())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.SuspendMsg{}, cmd())

	_, _ = update(t, m, tea.ResumeMsg{})
	assert.True(t, tracker.Focused())
}

func TestToast_ExpiresBySequence(t *testing.T) {
	m := newFixture(t).model(t)

	m, cmd := update(t, m, feedbackMsg(session.Event{
		Kind:  session.KindToast,
		Title: "New notification",
		Body:  "Build finished",
	}))
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Build finished")

	m, _ = update(t, m, toastExpiredMsg{seq: m.toastSeq - 1})
	assert.NotNil(t, m.toast)

	m, _ = update(t, m, toastExpiredMsg{seq: m.toastSeq})
	assert.Nil(t, m.toast)
	assert.NotContains(t, m.View(), "Build finished")
}

func TestSound_RingsBell(t *testing.T) {
	f := newFixture(t)
	m := f.model(t)

	_, _ = update(t, m, feedbackMsg(session.Event{Kind: session.KindSound, Count: 2}))
	assert.Equal(t, "\a", f.bell.String())
}

func TestState_HeaderAndDetail(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ring.Set(credential.TokenKey("default"), token(t, "alice")))
	m := f.model(t)

	items := []model.Notification{
		{ID: "n2", UserID: "alice", Title: "Second", Type: "info", Priority: model.PriorityNormal},
		{ID: "n1", UserID: "alice", Title: "First", Type: "info", Priority: model.PriorityNormal, IsRead: true},
	}
	m, _ = update(t, m, stateMsg{active: true, state: session.State{
		UserID:              "alice",
		Items:               items,
		UnreadCount:         1,
		InitialLoadComplete: true,
	}})
	view := m.View()
	assert.Contains(t, view, "Inbox [1 unread]")
	assert.Contains(t, view, "Second")

	// Opening an unread notification marks it read; with no running session
	// the call reports not logged in.
	m, cmd := update(t, m, inbox.SelectedMsg{ID: "n2"})
	assert.Equal(t, ViewDetail, m.currentView)
	require.NotNil(t, cmd)
	done, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "mark read", done.op)
	assert.ErrorIs(t, done.err, session.ErrStopped)

	m, _ = update(t, m, done)
	assert.Contains(t, m.View(), "mark read: not logged in")

	// The open notification disappearing leaves a placeholder.
	m, _ = update(t, m, stateMsg{active: true, state: session.State{UserID: "alice", Items: items[1:]}})
	assert.Contains(t, m.View(), "no longer available")
}

func TestLoggedOutList(t *testing.T) {
	m := newFixture(t).model(t)
	m, _ = update(t, m, login.CancelMsg{})
	assert.Equal(t, ViewList, m.currentView)
	assert.Contains(t, m.View(), "Press L to log in")
	assert.Contains(t, m.View(), "not logged in")
}

func TestCommands(t *testing.T) {
	m := newFixture(t).model(t)
	m, _ = update(t, m, login.CancelMsg{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	assert.Equal(t, ViewCommand, m.currentView)

	m, _ = update(t, m, command.CommandMsg("unread"))
	assert.Equal(t, ViewList, m.currentView)
	assert.True(t, m.inbox.UnreadOnly())

	m, _ = update(t, m, command.CommandMsg("all"))
	assert.False(t, m.inbox.UnreadOnly())

	m, _ = update(t, m, command.CommandMsg("bogus"))
	assert.Equal(t, "unknown command: bogus", m.flash)

	m, _ = update(t, m, command.CommandMsg("pause"))
	assert.Equal(t, "pause: not logged in", m.flash)

	_, cmd := update(t, m, command.CommandMsg("quit"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLoginAndLogout(t *testing.T) {
	srv := httptest.NewServer(server.New(testutil.NewTestStore(t)).Handler())
	t.Cleanup(srv.Close)

	f := newFixture(t)
	m := f.model(t)
	m.engine.sessions.Start()

	tok := token(t, "alice")
	m, cmd := update(t, m, login.SubmittedMsg{BaseURL: srv.URL, Token: tok, UserID: "alice"})
	assert.Equal(t, ViewList, m.currentView)
	require.NotNil(t, cmd)

	done, ok := cmd().(loginDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.Equal(t, "alice", done.userID)

	stored, err := f.ring.Get(credential.TokenKey("default"))
	require.NoError(t, err)
	assert.Equal(t, tok, stored)

	svc, ok := m.engine.sessions.Current()
	require.True(t, ok)
	assert.Equal(t, "alice", svc.UserID())

	saved, err := model.LoadConfig(f.env.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, saved.Server.BaseURL)

	st, ok := m.engine.waitForChange()().(stateMsg)
	require.True(t, ok)
	assert.True(t, st.active)
	assert.Equal(t, "alice", st.state.UserID)

	out, ok := m.engine.logout()().(logoutDoneMsg)
	require.True(t, ok)
	require.NoError(t, out.err)

	_, err = f.ring.Get(credential.TokenKey("default"))
	assert.ErrorIs(t, err, credential.ErrNotFound)
	_, ok = m.engine.sessions.Current()
	assert.False(t, ok)
}

func TestResumeCommand_RespectsFocus(t *testing.T) {
	srv := httptest.NewServer(server.New(testutil.NewTestStore(t)).Handler())
	t.Cleanup(srv.Close)

	m := newFixture(t).model(t)
	m.engine.sessions.Start()
	m, cmd := update(t, m, login.SubmittedMsg{BaseURL: srv.URL, Token: token(t, "alice"), UserID: "alice"})
	require.NotNil(t, cmd)
	done, ok := cmd().(loginDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	svc, ok := m.engine.sessions.Current()
	require.True(t, ok)

	m, _ = update(t, m, tea.BlurMsg{})
	require.Equal(t, schedsync.PhasePaused, svc.State().Scheduler.Phase)

	m, _ = update(t, m, command.CommandMsg("resume"))
	assert.Equal(t, "resume: terminal unfocused", m.flash)
	assert.Equal(t, schedsync.PhasePaused, svc.State().Scheduler.Phase)

	m, _ = update(t, m, tea.FocusMsg{})
	require.Equal(t, schedsync.PhasePolling, svc.State().Scheduler.Phase)

	m, _ = update(t, m, command.CommandMsg("pause"))
	assert.Equal(t, "polling paused", m.flash)
	assert.Equal(t, schedsync.PhasePaused, svc.State().Scheduler.Phase)

	m, _ = update(t, m, command.CommandMsg("resume"))
	assert.Equal(t, "polling resumed", m.flash)
	assert.Equal(t, schedsync.PhasePolling, svc.State().Scheduler.Phase)
}
