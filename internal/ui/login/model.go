// Package login is the huh form that collects the server URL and API token.
package login

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox/internal/identity"
	"github.com/nhle/inbox/internal/theme"
)

// SubmittedMsg carries the completed form.
type SubmittedMsg struct {
	BaseURL string
	Token   string
	UserID  string
}

// CancelMsg signals the form was aborted.
type CancelMsg struct{}

// values is heap-allocated so the form's bindings survive model copies.
type values struct {
	baseURL string
	token   string
}

// Model is the Bubble Tea model for the login form.
type Model struct {
	form   *huh.Form
	vals   *values
	width  int
	height int
}

// New creates a login form pre-filled with baseURL.
func New(baseURL string, width, height int) Model {
	m := Model{
		vals:   &values{baseURL: baseURL},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Form returns the underlying huh form for standalone use.
func (m Model) Form() *huh.Form { return m.form }

// Result returns the submitted values.
func (m Model) Result() SubmittedMsg {
	token := strings.TrimSpace(m.vals.token)
	userID, _ := identity.UserIDFromToken(token)
	return SubmittedMsg{
		BaseURL: strings.TrimRight(strings.TrimSpace(m.vals.baseURL), "/"),
		Token:   token,
		UserID:  userID,
	}
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Notification API root (e.g., http://localhost:8080)").
				Placeholder("http://localhost:8080").
				Value(&m.vals.baseURL).
				Validate(ValidateURL),
			huh.NewInput().
				Title("API Token").
				Description("Bearer token issued for your user").
				EchoMode(huh.EchoModePassword).
				Value(&m.vals.token).
				Validate(ValidateToken),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return max(min(m.width-8, 72), 30)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards messages to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		res := m.Result()
		return m, func() tea.Msg { return res }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form inside a panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Log in")

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.form.View()))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

// ValidateURL requires an absolute http(s) URL.
func ValidateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("URL must include http(s) scheme and host (e.g., https://example.com)")
	}
	return nil
}

// ValidateToken requires a JWT naming a user.
func ValidateToken(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("token is required")
	}
	if _, err := identity.UserIDFromToken(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("token must be a JWT with a user_id or sub claim")
	}
	return nil
}
