package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox/internal/theme"
)

// Layout manages the terminal layout dimensions: a one-line header, the
// content area, an optional toast and a one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the top header bar with a title and sync status.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		l.fill(theme.HeaderStyle, l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.renderBar(theme.StatusBarStyle, hints)
}

// RenderErrorBar renders the status bar in the error style.
func (l Layout) RenderErrorBar(msg string) string {
	return l.renderBar(theme.ErrorBarStyle, msg)
}

func (l Layout) renderBar(style lipgloss.Style, text string) string {
	rendered := style.Render(text)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.fill(style, l.Width-lipgloss.Width(rendered)),
	)
}

func (l Layout) fill(style lipgloss.Style, gap int) string {
	return style.Render(
		lipgloss.NewStyle().
			Width(max(gap, 0)).
			Background(style.GetBackground()).
			Render(""),
	)
}

// RenderToast renders a right-aligned toast box.
func (l Layout) RenderToast(title, body string) string {
	box := theme.ToastStyle.
		MaxWidth(l.Width).
		Render(lipgloss.JoinVertical(
			lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(title),
			body,
		))
	return lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, box)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, optional toast and status bar. The content is
// clipped so the toast never pushes the status bar off screen.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	toast string,
	statusBar string,
) string {
	if toast == "" {
		return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	}

	room := max(l.ContentHeight()-lipgloss.Height(toast), 0)
	content = lipgloss.NewStyle().MaxHeight(room).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, toast, statusBar)
}
