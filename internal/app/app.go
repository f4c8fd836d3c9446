// Package app is the root Bubble Tea model of the inbox TUI.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/focus"
	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/gateway/httpapi"
	"github.com/nhle/inbox/internal/keys"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/session"
	"github.com/nhle/inbox/internal/theme"
	"github.com/nhle/inbox/internal/ui"
	"github.com/nhle/inbox/internal/ui/command"
	"github.com/nhle/inbox/internal/ui/detail"
	helpview "github.com/nhle/inbox/internal/ui/help"
	"github.com/nhle/inbox/internal/ui/inbox"
	"github.com/nhle/inbox/internal/ui/login"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewLogin
)

// toastExpiredMsg hides the toast with the matching sequence number.
type toastExpiredMsg struct {
	seq int
}

// Env holds the dependencies of the TUI. Zero fields get defaults.
type Env struct {
	Config     *model.AppConfig
	ConfigPath string
	Keyring    credential.Keyring
	Logger     *zap.Logger
	Clock      clockwork.Clock
	NewGateway GatewayFactory

	// Bell receives the terminal bell for sound feedback.
	Bell io.Writer
}

func (env *Env) defaults() {
	if env.Config == nil {
		cfg, err := model.LoadConfig(model.DefaultConfigPath())
		if err != nil {
			// An empty path reads defaults and the environment only.
			cfg, _ = model.LoadConfig("")
		}
		env.Config = cfg
	}
	if env.Keyring == nil {
		env.Keyring = credential.NewSystem(model.ConfigDir())
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.Clock == nil {
		env.Clock = clockwork.NewRealClock()
	}
	if env.NewGateway == nil {
		env.NewGateway = func(baseURL, token string) gateway.Gateway {
			return httpapi.New(baseURL, token)
		}
	}
	if env.Bell == nil {
		env.Bell = io.Discard
	}
}

// Model is the root Bubble Tea model that routes between views and relays
// session state into them.
type Model struct {
	engine        *engine
	configPath    string
	bell          io.Writer
	toastDuration time.Duration

	keys         *keys.KeyMap
	layout       ui.Layout
	ready        bool
	currentView  ViewState
	previousView ViewState

	inbox       inbox.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	loginView   login.Model

	state    session.State
	active   bool
	detailID string
	toast    *session.Event
	toastSeq int
	flash    string
}

// New creates the root model. Nothing runs until Init.
func New(env Env) Model {
	env.defaults()
	k := keys.DefaultKeyMap()
	e := newEngine(env)

	m := Model{
		engine:        e,
		configPath:    env.ConfigPath,
		bell:          env.Bell,
		toastDuration: env.Config.ToastDuration(),
		keys:          k,
		layout:        ui.NewLayout(80, 24),
		inbox:         inbox.New(k, 80, 24),
		detail:        detail.New(k, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		loginView:     login.New(env.Config.Server.BaseURL, 80, 24),
	}
	if e.identity.Current() == "" {
		m.currentView = ViewLogin
	}
	return m
}

// Run starts the TUI and blocks until it exits.
func Run(env Env) error {
	if env.Bell == nil {
		env.Bell = os.Stderr
	}
	m := New(env)
	defer m.engine.shutdown()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus()).Run()
	return err
}

// Init starts the session manager and begins listening for session output.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.engine.start(),
		m.engine.waitForChange(),
		m.engine.waitForEvent(),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.inbox.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.loginView.SetSize(w, h)
		// huh forms need the size message to lay out.
		return m.updateActiveView(msg)

	case tea.FocusMsg:
		m.engine.tracker.Report(focus.SignalWindow, true)
		return m, nil

	case tea.BlurMsg:
		m.engine.tracker.Report(focus.SignalWindow, false)
		return m, nil

	case tea.ResumeMsg:
		m.engine.tracker.Report(focus.SignalVisibility, true)
		return m, nil

	case stateMsg:
		m.state, m.active = msg.state, msg.active
		cmd := m.inbox.SetState(m.state.Items, m.state.HasMore, m.state.IsLoading, m.state.InitialLoadComplete)
		if m.currentView == ViewDetail {
			m.detail.SetNotification(findItem(m.state.Items, m.detailID))
		}
		m.helpView.SetInfo(m.syncInfo())
		return m, tea.Batch(cmd, m.engine.waitForChange())

	case feedbackMsg:
		return m.handleFeedback(session.Event(msg))

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.flash = actionError(msg.op, msg.err)
		}
		return m, nil

	case inbox.SelectedMsg:
		return m.openDetail(msg.ID)

	case inbox.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case inbox.DeleteMsg:
		return m, m.deleteNotification(msg.ID)

	case inbox.LoadMoreMsg:
		return m, m.loadMore()

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.DeleteMsg:
		m.currentView = ViewList
		return m, m.deleteNotification(msg.ID)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case login.SubmittedMsg:
		m.currentView = ViewList
		m.detailID = ""
		return m, m.engine.login(msg, m.configPath)

	case login.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case loginDoneMsg:
		if msg.err != nil {
			m.flash = "login failed: " + msg.err.Error()
		} else {
			m.flash = "logged in as " + msg.userID
		}
		return m, nil

	case logoutDoneMsg:
		if msg.err != nil {
			m.flash = "logout: " + msg.err.Error()
		} else {
			m.flash = "logged out"
		}
		return m, nil

	case tea.KeyMsg:
		m.flash = ""
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if key.Matches(msg, m.keys.Suspend) {
			// The program handles SuspendMsg itself, so hidden is reported here.
			m.engine.tracker.Report(focus.SignalVisibility, false)
			return m, tea.Suspend
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that work across views. Text-entry views
// only see Back.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch m.currentView {
	case ViewLogin:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewList
			return m, nil, true
		}
		return m, nil, false

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Command) && m.commandIsEmpty() {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false

	case ViewHelp:
		if key.Matches(msg, m.keys.Back, m.keys.Help) {
			m.currentView = m.previousView
			return m, nil, true
		}
		if key.Matches(msg, m.keys.Quit) {
			next, cmd := m.quit()
			return next.(Model), cmd, true
		}
		return m, nil, true
	}

	switch {
	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewList:
		next, cmd := m.quit()
		return next.(Model), cmd, true

	case key.Matches(msg, m.keys.Help):
		m.helpView.SetInfo(m.syncInfo())
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh(), true

	case key.Matches(msg, m.keys.MarkAllRead) && m.currentView == ViewList:
		return m, m.markAllRead(), true

	case key.Matches(msg, m.keys.Login) && m.currentView == ViewList:
		next, cmd := m.openLogin()
		return next, cmd, true
	}
	return m, nil, false
}

func (m Model) commandIsEmpty() bool {
	return m.commandView.Value() == ""
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	}

	return m, cmd
}

func (m Model) handleFeedback(ev session.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.engine.waitForEvent()}

	switch ev.Kind {
	case session.KindToast:
		m.toastSeq++
		m.toast = &ev
		seq := m.toastSeq
		cmds = append(cmds, tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		}))
	case session.KindSound:
		if _, err := io.WriteString(m.bell, "\a"); err != nil {
			m.engine.logger.Debug("bell", zap.Error(err))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) openDetail(id string) (tea.Model, tea.Cmd) {
	m.previousView = m.currentView
	m.currentView = ViewDetail
	m.detailID = id

	n := findItem(m.state.Items, id)
	m.detail.SetNotification(n)
	if n != nil && !n.IsRead {
		return m, m.markRead(id)
	}
	return m, nil
}

func (m Model) openLogin() (Model, tea.Cmd) {
	m.loginView = login.New(m.engine.cfg.Server.BaseURL, m.layout.ContentWidth(), m.layout.ContentHeight())
	m.previousView = m.currentView
	m.currentView = ViewLogin
	return m, m.loginView.Init()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.engine.shutdown()
	return m, tea.Quit
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())

	var toast string
	if m.toast != nil {
		toast = m.layout.RenderToast(m.toast.Title, m.toast.Body)
	}

	return m.layout.RenderWithFrame(header, m.renderContent(), toast, m.renderStatusBar())
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		if !m.active {
			return lipgloss.NewStyle().
				Width(m.layout.ContentWidth()).
				Height(m.layout.ContentHeight()).
				Align(lipgloss.Center, lipgloss.Center).
				Foreground(theme.ColorGray).
				Render("Not logged in.\nPress L to log in.")
		}
		return m.inbox.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewLogin:
		return m.loginView.View()
	default:
		return ""
	}
}

func (m Model) headerTitle() string {
	if m.active && m.state.UnreadCount > 0 {
		return fmt.Sprintf("Inbox [%d unread]", m.state.UnreadCount)
	}
	return "Inbox"
}

// syncStatus returns a short string describing the sync engine.
func (m Model) syncStatus() string {
	if !m.active {
		return "not logged in"
	}
	if m.state.IsLoading {
		return m.state.UserID + " | syncing..."
	}
	status := m.state.UserID + " | " + m.state.Scheduler.Phase.String()
	if !m.state.LastSync.IsZero() {
		status += " " + m.state.LastSync.Local().Format("15:04:05")
	}
	return status
}

func (m Model) renderStatusBar() string {
	if m.flash != "" {
		return m.layout.RenderStatusBar(m.flash)
	}
	if e := m.state.LastError; m.active && e != nil && (m.currentView == ViewList || m.currentView == ViewDetail) {
		return m.layout.RenderErrorBar(fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, e.Message))
	}
	return m.layout.RenderStatusBar(m.keyHints())
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | d delete | r refresh | j/k scroll"
	case ViewLogin:
		return "enter next | esc cancel"
	default:
		if !m.active {
			return "L log in | ? help | q quit"
		}
		return "q quit | ? help | enter open | m read | M read all | d delete | u unread | r refresh"
	}
}

func (m Model) syncInfo() helpview.SyncInfo {
	if !m.active {
		return helpview.SyncInfo{}
	}
	last := "never"
	if !m.state.LastSync.IsZero() {
		last = m.state.LastSync.Local().Format("2006-01-02 15:04:05")
	}
	return helpview.SyncInfo{
		UserID:       m.state.UserID,
		Phase:        m.state.Scheduler.Phase.String(),
		Interval:     m.engine.cfg.PollInterval().String(),
		TicksRun:     m.state.Scheduler.TicksRun,
		TicksSkipped: m.state.Scheduler.TicksSkipped,
		LastSync:     last,
	}
}

// findItem returns a copy of the notification with id, or nil.
func findItem(items []model.Notification, id string) *model.Notification {
	for i := range items {
		if items[i].ID == id {
			n := items[i]
			return &n
		}
	}
	return nil
}

func actionError(op string, err error) string {
	if errors.Is(err, session.ErrStopped) {
		return op + ": not logged in"
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}
