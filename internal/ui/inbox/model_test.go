package inbox

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox/internal/keys"
	"github.com/nhle/inbox/internal/model"
)

func notif(id string, read bool) model.Notification {
	return model.Notification{ID: id, Title: "title " + id, IsRead: read, Priority: model.PriorityNormal}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestSetState_KeepsSelection(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetState([]model.Notification{notif("a", false), notif("b", false)}, false, false, true)
	m.list.Select(1)

	m.SetState([]model.Notification{notif("new", false), notif("a", false), notif("b", false)}, false, false, true)
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", sel.ID)
}

func TestUnreadOnlyFilter(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetState([]model.Notification{notif("a", true), notif("b", false)}, false, false, true)
	assert.Len(t, m.list.Items(), 2)

	m, _ = m.Update(keyMsg("u"))
	assert.True(t, m.UnreadOnly())
	assert.Len(t, m.list.Items(), 1)

	m.SetState([]model.Notification{notif("a", true), notif("b", true)}, false, false, true)
	assert.Empty(t, m.list.Items())
	assert.Contains(t, m.View(), "No unread notifications")
}

func TestKeys_EmitActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetState([]model.Notification{notif("a", false), notif("b", true)}, true, false, true)

	_, cmd := m.Update(keyMsg("enter"))
	assert.Equal(t, SelectedMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(keyMsg("m"))
	assert.Equal(t, MarkReadMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(keyMsg("d"))
	assert.Equal(t, DeleteMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(keyMsg("n"))
	assert.Equal(t, LoadMoreMsg{}, run(t, cmd))

	m.list.Select(1)
	_, cmd = m.Update(keyMsg("m"))
	assert.Nil(t, cmd, "already read")
}

func TestLoadMore_NotOfferedWithoutMore(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetState([]model.Notification{notif("a", false)}, false, false, true)

	_, cmd := m.Update(keyMsg("n"))
	assert.Nil(t, cmd)

	m.SetState([]model.Notification{notif("a", false)}, true, true, true)
	_, cmd = m.Update(keyMsg("n"))
	assert.Nil(t, cmd, "already loading")
}

func TestEmptyStates(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "Loading")

	m.SetState(nil, false, false, true)
	assert.Contains(t, m.View(), "caught up")
}

func TestRenderLine(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	d := ItemDelegate{now: func() time.Time { return now }}

	n := model.Notification{ID: "a", Title: "Deploy done", Type: "task", Priority: model.PriorityUrgent, CreatedAt: now.Add(-3 * time.Hour)}
	line := d.renderLine(n, false)
	assert.Contains(t, line, "Deploy done")
	assert.Contains(t, line, "●")
	assert.Contains(t, line, "3h ago")
	assert.Contains(t, line, "!!!")

	n.IsRead = true
	assert.False(t, strings.Contains(d.renderLine(n, false), "●"))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := map[time.Duration]string{
		10 * time.Second:    "just now",
		5 * time.Minute:     "5m ago",
		2 * time.Hour:       "2h ago",
		3 * 24 * time.Hour:  "3d ago",
		15 * 24 * time.Hour: "2w ago",
	}
	for ago, want := range cases {
		assert.Equal(t, want, relativeTime(now.Add(-ago), now))
	}
	assert.Empty(t, relativeTime(time.Time{}, now))
}
