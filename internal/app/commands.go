package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/inbox/internal/session"
)

func (m Model) refresh() tea.Cmd {
	return m.engine.call("refresh", func(ctx context.Context, s *session.Service) error {
		return s.Refresh(ctx)
	})
}

func (m Model) loadMore() tea.Cmd {
	return m.engine.call("load more", func(ctx context.Context, s *session.Service) error {
		return s.LoadMore(ctx)
	})
}

func (m Model) markRead(id string) tea.Cmd {
	return m.engine.call("mark read", func(ctx context.Context, s *session.Service) error {
		return s.MarkAsRead(ctx, id)
	})
}

func (m Model) markAllRead() tea.Cmd {
	return m.engine.call("mark all read", func(ctx context.Context, s *session.Service) error {
		return s.MarkAllAsRead(ctx)
	})
}

func (m Model) deleteNotification(id string) tea.Cmd {
	return m.engine.call("delete", func(ctx context.Context, s *session.Service) error {
		return s.DeleteNotification(ctx, id)
	})
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "refresh", "sync":
		return m, m.refresh()
	case "more":
		return m, m.loadMore()
	case "read-all":
		return m, m.markAllRead()
	case "unread":
		c := m.inbox.SetUnreadOnly(true)
		return m, c
	case "all":
		c := m.inbox.SetUnreadOnly(false)
		return m, c
	case "pause", "resume":
		svc, ok := m.engine.sessions.Current()
		switch {
		case !ok:
			m.flash = cmd + ": not logged in"
		case cmd == "pause":
			svc.Pause()
			m.flash = "polling paused"
		case !m.engine.tracker.Focused():
			// Focus gained later resumes on its own.
			m.flash = "resume: terminal unfocused"
		default:
			svc.Resume()
			m.flash = "polling resumed"
		}
		return m, nil
	case "login":
		return m.openLogin()
	case "logout":
		m.currentView = ViewList
		return m, m.engine.logout()
	case "help":
		m.helpView.SetInfo(m.syncInfo())
		m.previousView = ViewList
		m.currentView = ViewHelp
		return m, nil
	case "quit", "q":
		return m.quit()
	default:
		m.flash = "unknown command: " + cmd
		return m, nil
	}
}
