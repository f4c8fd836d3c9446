package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox/internal/keys"
	"github.com/nhle/inbox/internal/theme"
)

// SyncInfo describes the running sync engine for the help overlay.
type SyncInfo struct {
	UserID       string
	Phase        string
	Interval     string
	TicksRun     int
	TicksSkipped int
	LastSync     string
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	info   SyncInfo
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Sync"),
		m.renderInfo(),
	)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m Model) renderInfo() string {
	if m.info.UserID == "" {
		return theme.HelpStyle.Render("not logged in")
	}

	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	rows := [][2]string{
		{"user", m.info.UserID},
		{"phase", m.info.Phase},
		{"interval", m.info.Interval},
		{"ticks", fmt.Sprintf("%d run, %d skipped", m.info.TicksRun, m.info.TicksSkipped)},
		{"last sync", m.info.LastSync},
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s", label.Render(fmt.Sprintf("%-10s", r[0])), r[1])
	}
	return b.String()
}

// SetInfo updates the sync details shown below the shortcuts.
func (m *Model) SetInfo(info SyncInfo) {
	m.info = info
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
