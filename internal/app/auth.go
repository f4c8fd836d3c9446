package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/credential"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/ui/login"
)

type loginDoneMsg struct {
	userID string
	err    error
}

type logoutDoneMsg struct {
	err error
}

// login stores the token, persists the server URL, and switches identity.
// Re-entering the current user's credentials restarts their session so the
// new token takes effect.
func (e *engine) login(res login.SubmittedMsg, configPath string) tea.Cmd {
	return func() tea.Msg {
		if res.UserID == "" {
			return loginDoneMsg{err: fmt.Errorf("token names no user")}
		}
		if err := e.keyring.Set(credential.TokenKey(e.cfg.Server.Profile), res.Token); err != nil {
			return loginDoneMsg{err: err}
		}

		e.cfg.Server.BaseURL = res.BaseURL
		if configPath != "" {
			if err := model.SaveConfig(configPath, e.cfg); err != nil {
				e.logger.Warn("saving config after login", zap.Error(err))
			}
		}

		if e.identity.Current() == res.UserID {
			e.identity.Clear()
		}
		e.identity.Set(res.UserID)
		e.logger.Info("logged in", zap.String("user_id", res.UserID))
		return loginDoneMsg{userID: res.UserID}
	}
}

// logout forgets the token and ends the session.
func (e *engine) logout() tea.Cmd {
	return func() tea.Msg {
		err := e.keyring.Delete(credential.TokenKey(e.cfg.Server.Profile))
		e.identity.Clear()
		e.logger.Info("logged out")
		return logoutDoneMsg{err: err}
	}
}
