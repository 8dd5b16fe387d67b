package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/wizard"
)

// Header renders the title bar and the pathway steps.
type Header struct {
	width int

	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style
	lockedStyle   lipgloss.Style
	currentStyle  lipgloss.Style
	pendingStyle  lipgloss.Style
}

// NewHeader creates a new Header.
func NewHeader() *Header {
	return &Header{
		width: 80,

		titleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC857")).
			Bold(true),

		subtitleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),

		lockedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		currentStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// View renders the header for doc. A nil doc renders the title only.
func (h *Header) View(doc *authoring.Document) string {
	title := h.titleStyle.Render("CPR Wizard")
	if doc == nil {
		return title
	}

	name := doc.Session.UserName
	if name == "" {
		name = doc.Session.OwnerID
	}
	subtitle := h.subtitleStyle.Render(fmt.Sprintf("%s · pathway %s", name, strings.ToUpper(string(doc.Session.Pathway))))

	steps := make([]string, 0, len(doc.Progress.Steps))
	for _, step := range doc.Progress.Steps {
		label := step.Kind.Title()
		switch {
		case step.State == wizard.StateLocked:
			steps = append(steps, h.lockedStyle.Render("✓ "+label))
		case step.Kind == doc.Progress.Current:
			steps = append(steps, h.currentStyle.Render("● "+label))
		default:
			steps = append(steps, h.pendingStyle.Render("○ "+label))
		}
	}
	bar := strings.Join(steps, h.pendingStyle.Render(" → "))

	return lipgloss.NewStyle().
		Width(h.width).
		PaddingBottom(1).
		Render(lipgloss.JoinVertical(lipgloss.Left, title+"  "+subtitle, bar))
}
