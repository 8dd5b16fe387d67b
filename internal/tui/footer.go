package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Footer renders the status message and keyboard hints.
type Footer struct {
	message string
	success bool
	done    bool
	width   int

	// Styles
	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, success bool) {
	f.message = message
	f.success = success
}

// SetDone marks the session as committed; only quitting remains.
func (f *Footer) SetDone(done bool) {
	f.done = done
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// Message returns the current status message.
func (f *Footer) Message() string {
	return f.message
}

// View renders the footer.
func (f *Footer) View(ready bool) string {
	var left string
	if f.message != "" {
		if f.success {
			left = f.successStyle.Render("✓ " + f.message)
		} else {
			left = f.errorStyle.Render("✗ " + f.message)
		}
	}

	right := f.keyboardHints(ready)
	if left == "" {
		return right
	}
	return left + f.separatorStyle.Render(" │ ") + right
}

// keyboardHints returns the hints for the current phase.
func (f *Footer) keyboardHints(ready bool) string {
	switch {
	case f.done:
		return f.hintStyle.Render("esc quit")
	case ready:
		return f.hintStyle.Render("ctrl+k commit │ esc quit")
	default:
		return f.hintStyle.Render("ctrl+s validate │ ctrl+l lock │ esc save & quit")
	}
}
