package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// VerdictView renders the last verdict.
type VerdictView struct {
	width int

	passStyle       lipgloss.Style
	failStyle       lipgloss.Style
	violationStyle  lipgloss.Style
	suggestionStyle lipgloss.Style
	exampleStyle    lipgloss.Style
	labelStyle      lipgloss.Style
}

// NewVerdictView creates a new VerdictView.
func NewVerdictView() *VerdictView {
	return &VerdictView{
		width: 80,

		passStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		violationStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		suggestionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		exampleStyle: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("39")).
			PaddingLeft(1).
			Italic(true),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

// SetWidth sets the view width.
func (v *VerdictView) SetWidth(width int) {
	v.width = width
}

// View renders verdict. A nil verdict renders nothing.
func (v *VerdictView) View(verdict *models.Verdict) string {
	if verdict == nil {
		return ""
	}
	wrap := lipgloss.NewStyle().Width(v.width - 4)

	var sb strings.Builder
	if verdict.Valid {
		sb.WriteString(v.passStyle.Render(verdict.Feedback))
	} else {
		sb.WriteString(v.failStyle.Render(verdict.Feedback))
	}
	sb.WriteString("\n")

	for _, msg := range verdict.Violations {
		sb.WriteString(v.violationStyle.Render(wrap.Render("✗ " + msg)))
		sb.WriteString("\n")
	}
	if len(verdict.Suggestions) > 0 {
		sb.WriteString(v.labelStyle.Render("Suggestions:"))
		sb.WriteString("\n")
		for _, msg := range verdict.Suggestions {
			sb.WriteString(v.suggestionStyle.Render(wrap.Render("• " + msg)))
			sb.WriteString("\n")
		}
	}
	if verdict.Example != "" {
		sb.WriteString(v.labelStyle.Render("Example:"))
		sb.WriteString("\n")
		sb.WriteString(v.exampleStyle.Render(verdict.Example))
		sb.WriteString("\n")
	}
	return sb.String()
}
