package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// systemPrompt fixes the validator persona and tone for mode.
func systemPrompt(mode models.CommunicationMode) string {
	tone := "professional, consultant-level language"
	if mode == models.ModeFriendly {
		tone = "plain language, casual tone"
	}
	return fmt.Sprintf(`You are a strict CPR (Context-Purpose-Results) framework validator.
Communication mode: %s.
Be precise and direct in your feedback.`, tone)
}

// anchorRules phrase the consistency requirement between a section and the
// locked section it follows in the pathway.
var anchorRules = map[[2]models.SectionKind]string{
	{models.SectionPurpose, models.SectionContext}: "Must flow from this Context",
	{models.SectionResults, models.SectionPurpose}: "Must deliver on this Purpose",
	{models.SectionPurpose, models.SectionResults}: "Must explain why these Results matter",
	{models.SectionContext, models.SectionPurpose}: "Must logically support this Purpose",
}

// anchorLine returns the cross-section rule for kind, or "" when the
// pathway predecessor is not locked yet.
func anchorLine(kind models.SectionKind, req Request) string {
	prev, ok := req.Pathway.Predecessor(kind)
	if !ok {
		return ""
	}
	content := req.Locked.text(prev)
	if content == "" {
		return ""
	}
	rule, ok := anchorRules[[2]models.SectionKind{kind, prev}]
	if !ok {
		return ""
	}
	return fmt.Sprintf("- %s: %q\n", rule, content)
}

// userPrompt encodes the rubric for one text of kind.
func userPrompt(kind models.SectionKind, content string, req Request) string {
	var sb strings.Builder

	switch kind {
	case models.SectionContext:
		fmt.Fprintf(&sb, "Validate this Context: %q\n\nRules:\n", content)
		sb.WriteString("- Must be a mindset/attitude (state-based, not action-based)\n")
		sb.WriteString("- Must be compelling and powerful\n")
		sb.WriteString("- Cannot be generic platitudes\n")
	case models.SectionPurpose:
		fmt.Fprintf(&sb, "Validate this Purpose: %q\n\nRules:\n", content)
		sb.WriteString("- Must be single sentence (run-on allowed)\n")
		sb.WriteString("- Must follow \"To [goal] by [how] so that [impact]\" structure\n")
		sb.WriteString("- Must include tangible goal and clear impact\n")
		sb.WriteString("- Must specify who benefits\n")
	case models.SectionResults:
		fmt.Fprintf(&sb, "Validate this Result: %q\n\nRules:\n", content)
		sb.WriteString("- Must be SMART (Specific, Measurable, Attainable, Relevant, Time-bound)\n")
		sb.WriteString("- Must be written in past tense\n")
		sb.WriteString("- Cannot have vague success criteria\n")
		sb.WriteString("- No undefined acronyms\n")
	}
	sb.WriteString(anchorLine(kind, req))

	fmt.Fprintf(&sb, "\nIs this %s valid? Provide specific feedback.", singular(kind))
	return sb.String()
}

// examplePrompt asks for one corrective example of kind.
func examplePrompt(req Request) string {
	exampleCtx := struct {
		Mode            models.CommunicationMode `json:"mode,omitempty"`
		Pathway         models.Pathway           `json:"pathway,omitempty"`
		ExistingContext string                   `json:"existingContext,omitempty"`
		ExistingPurpose string                   `json:"existingPurpose,omitempty"`
		ExistingResults []string                 `json:"existingResults,omitempty"`
	}{
		Mode:            req.Mode,
		Pathway:         req.Pathway,
		ExistingContext: req.Locked.Context,
		ExistingPurpose: req.Locked.Purpose,
		ExistingResults: req.Locked.Results,
	}
	// Marshal of plain strings cannot fail.
	data, _ := json.Marshal(exampleCtx)

	return fmt.Sprintf(`Provide ONE example of a valid %s that would meet all requirements.
Context for example: %s
Return ONLY the example, no explanation.`, singular(req.Kind), data)
}

func singular(kind models.SectionKind) string {
	if kind == models.SectionResults {
		return "Result"
	}
	return kind.Title()
}
