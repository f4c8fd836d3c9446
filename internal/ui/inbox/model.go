// Package inbox renders the notification list.
package inbox

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox/internal/keys"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/theme"
)

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	ID string
}

// MarkReadMsg asks the parent to mark a notification read.
type MarkReadMsg struct {
	ID string
}

// DeleteMsg asks the parent to delete a notification.
type DeleteMsg struct {
	ID string
}

// LoadMoreMsg asks the parent to fetch the next page.
type LoadMoreMsg struct{}

// Model is the notification list view component.
type Model struct {
	list       list.Model
	keys       *keys.KeyMap
	items      []model.Notification
	unreadOnly bool
	hasMore    bool
	loading    bool
	loaded     bool
	width      int
	height     int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("notification", "notifications")
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.KeyMap.Quit.SetEnabled(false)

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns nil; items arrive through SetState.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetState replaces the displayed notifications, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetState(items []model.Notification, hasMore, loading, loaded bool) tea.Cmd {
	m.items = items
	m.hasMore = hasMore
	m.loading = loading
	m.loaded = loaded
	return m.rebuild()
}

func (m *Model) rebuild() tea.Cmd {
	selected, hadSelection := m.Selected()

	visible := make([]list.Item, 0, len(m.items))
	for _, n := range m.items {
		if m.unreadOnly && n.IsRead {
			continue
		}
		visible = append(visible, Item{Notification: n})
	}
	cmd := m.list.SetItems(visible)

	if hadSelection {
		for i, it := range visible {
			if it.(Item).Notification.ID == selected.ID {
				m.list.Select(i)
				break
			}
		}
	}

	if m.unreadOnly {
		m.list.Title = "Inbox (unread)"
	} else {
		m.list.Title = "Inbox"
	}
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// UnreadOnly reports whether read notifications are hidden.
func (m Model) UnreadOnly() bool { return m.unreadOnly }

// SetUnreadOnly hides or shows read notifications.
func (m *Model) SetUnreadOnly(v bool) tea.Cmd {
	m.unreadOnly = v
	return m.rebuild()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		if n, ok := m.Selected(); ok {
			return m, emit(SelectedMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.Selected(); ok && !n.IsRead {
			return m, emit(MarkReadMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.Selected(); ok {
			return m, emit(DeleteMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(msg, m.keys.UnreadOnly):
		cmd := m.SetUnreadOnly(!m.unreadOnly)
		return m, cmd

	case key.Matches(msg, m.keys.LoadMore):
		if m.hasMore && !m.loading {
			return m, emit(LoadMoreMsg{})
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		// Scrolling past the last row pages in more.
		atEnd := m.list.Index() >= len(m.list.Items())-1
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if atEnd && m.hasMore && !m.loading {
			return m, tea.Batch(cmd, emit(LoadMoreMsg{}))
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	view := m.list.View()
	if m.hasMore {
		view = lipgloss.JoinVertical(lipgloss.Left, view,
			theme.HelpStyle.Render("  more available: n or scroll down"))
	}
	return view
}

// renderEmptyState shows guidance text when nothing is listed.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case !m.loaded:
		return style.Render("Loading notifications...")
	case m.unreadOnly && len(m.items) > 0:
		return style.Render("No unread notifications.\nPress u to show all.")
	default:
		return style.Render("You're all caught up.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 0))
}
