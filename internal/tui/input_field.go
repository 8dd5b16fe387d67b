package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// dateSeparator splits a result line from its optional completion date.
const dateSeparator = " @ "

// InputField is the multi-line editor for one section draft.
type InputField struct {
	area  textarea.Model
	kind  models.SectionKind
	width int
	// loaded holds the result items last put into the editor, so edited
	// lines keep their item ids.
	loaded []models.ResultDraft
}

// NewInputField creates a new InputField.
func NewInputField() *InputField {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetWidth(76)
	ta.SetHeight(6)
	ta.Focus()

	return &InputField{
		area:  ta,
		width: 80,
	}
}

// SetWidth sets the width of the input field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.area.SetWidth(width - 4) // Account for border and padding
}

// Load puts draft into the editor for kind.
func (f *InputField) Load(kind models.SectionKind, draft models.Draft) {
	f.kind = kind
	f.area.Placeholder = placeholder(kind)
	f.loaded = nil
	if kind == models.SectionResults {
		f.loaded = append([]models.ResultDraft(nil), draft.Results...)
		f.area.SetValue(FormatResults(draft.Results))
	} else {
		f.area.SetValue(draft.Text)
	}
}

// Kind returns the section being edited.
func (f *InputField) Kind() models.SectionKind {
	return f.kind
}

// Draft parses the editor content into a draft.
func (f *InputField) Draft() (models.Draft, error) {
	if f.kind == models.SectionResults {
		items, err := ParseResults(f.area.Value())
		if err != nil {
			return models.Draft{}, err
		}
		return models.Draft{Results: MatchIDs(items, f.loaded)}, nil
	}
	return models.Draft{Text: strings.TrimSpace(f.area.Value())}, nil
}

// Update handles messages for the input field.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	var cmd tea.Cmd
	f.area, cmd = f.area.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *InputField) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(f.width - 2)

	return boxStyle.Render(f.area.View())
}

// Focus sets focus on the input field.
func (f *InputField) Focus() tea.Cmd {
	return f.area.Focus()
}

// Blur removes focus from the input field.
func (f *InputField) Blur() {
	f.area.Blur()
}

func placeholder(kind models.SectionKind) string {
	switch kind {
	case models.SectionContext:
		return "1-5 words: the mindset you bring"
	case models.SectionPurpose:
		return "To [goal] by [how] so that [impact]"
	case models.SectionResults:
		return "One past-tense result per line, optionally ending with @ YYYY-MM-DD and [direct|partial|none]"
	default:
		return ""
	}
}

// ParseResults reads one result per non-blank line. A line may end with
// " @ YYYY-MM-DD" to set its completion date, followed by an optional
// " [direct]", " [partial]" or " [none]" control level.
func ParseResults(text string) ([]models.ResultDraft, error) {
	var items []models.ResultDraft
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		item := models.ResultDraft{}
		line, item.ControlLevel = splitControl(line)
		item.Content = line
		if i := strings.LastIndex(line, dateSeparator); i >= 0 {
			d, err := models.ParseDate(line[i+len(dateSeparator):])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			item.Content = strings.TrimSpace(line[:i])
			item.CompletionDate = &d
		}
		items = append(items, item)
	}
	return items, nil
}

// splitControl strips a trailing "[level]" naming a known control level.
// Any other bracketed suffix stays part of the content.
func splitControl(line string) (string, models.ControlLevel) {
	if !strings.HasSuffix(line, "]") {
		return line, ""
	}
	i := strings.LastIndex(line, " [")
	if i < 0 {
		return line, ""
	}
	level := models.ControlLevel(strings.ToLower(strings.TrimSpace(line[i+2 : len(line)-1])))
	if level == "" || !level.Valid() {
		return line, ""
	}
	return strings.TrimSpace(line[:i]), level
}

// FormatResults is the inverse of ParseResults. Item ids are not part of
// the text; MatchIDs restores them.
func FormatResults(items []models.ResultDraft) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := it.Content
		if it.CompletionDate != nil {
			line += dateSeparator + it.CompletionDate.String()
		}
		if it.ControlLevel != "" {
			line += " [" + string(it.ControlLevel) + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// MatchIDs gives parsed items the ids of the loaded items they came from.
// A line whose content equals a loaded item takes that item's id wherever
// the line moved. A remaining line takes the id of the unclaimed loaded
// item on the same line, which covers in-place edits. Other lines are new.
func MatchIDs(items, loaded []models.ResultDraft) []models.ResultDraft {
	out := make([]models.ResultDraft, len(items))
	copy(out, items)
	claimed := make([]bool, len(loaded))

	for i := range out {
		for j, prev := range loaded {
			if !claimed[j] && prev.ID != "" && prev.Content == out[i].Content {
				out[i].ID = prev.ID
				claimed[j] = true
				break
			}
		}
	}
	for i := range out {
		if out[i].ID != "" || i >= len(loaded) || claimed[i] || loaded[i].ID == "" {
			continue
		}
		out[i].ID = loaded[i].ID
		claimed[i] = true
	}
	return out
}
