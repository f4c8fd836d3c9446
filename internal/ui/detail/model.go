package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox/internal/keys"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DeleteMsg asks the parent to delete the displayed notification.
type DeleteMsg struct {
	ID string
}

const timeLayout = "2006-01-02 15:04"

// Model is the notification detail view component.
type Model struct {
	n        *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Delete):
			if m.n != nil {
				id := m.n.ID
				return m, func() tea.Msg { return DeleteMsg{ID: id} }
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.n == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Notification no longer available")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.n == nil {
		return ""
	}

	n := m.n
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	typ := n.Type
	if typ == "" {
		typ = "info"
	}
	status := "unread"
	if n.IsRead {
		status = "read"
	}
	sections = append(sections, lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.TypeLabelStyle(typ).Render(strings.ToUpper(typ)),
		"  ",
		theme.PriorityStyle(string(n.Priority)).Render(string(n.Priority)),
		"  ",
		theme.DimmedStyle.Render(status),
	))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-9s", label+":")),
			valStyle.Render(value),
		))
	}

	if !n.CreatedAt.IsZero() {
		meta("Created", n.CreatedAt.Local().Format(timeLayout))
	}
	if n.ReadAt != nil {
		meta("Read", n.ReadAt.Local().Format(timeLayout))
	}
	if n.ExpiresAt != nil {
		meta("Expires", n.ExpiresAt.Local().Format(timeLayout))
	}
	if n.ActionURL != "" {
		label := n.ActionText
		if label == "" {
			label = "Open"
		}
		meta(label, n.ActionURL)
	}

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed. A nil
// notification shows the not-available placeholder.
func (m *Model) SetNotification(n *model.Notification) {
	sameID := m.n != nil && n != nil && m.n.ID == n.ID
	m.n = n
	m.viewport.SetContent(m.renderContent())
	if !sameID {
		m.viewport.GotoTop()
	}
}

// Current returns the ID of the displayed notification.
func (m Model) Current() string {
	if m.n == nil {
		return ""
	}
	return m.n.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
