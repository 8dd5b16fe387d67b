package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// Rule violation messages.
const (
	MsgContextWordCount    = "Context must be %d-%d words only"
	MsgContextBanned       = "Context contains vague or overused terms. Be more specific and powerful."
	MsgPurposeStructure    = `Purpose must follow structure: "To [goal] by [how] so that [impact]"`
	MsgPurposeSoThat       = `Purpose must state its impact with "so that"`
	MsgPurposeVague        = "Purpose contains vague verbs. Be specific about what you will accomplish."
	MsgResultEmpty         = "Result cannot be empty"
	MsgResultPastTense     = "Must be written in past tense"
	MsgResultAfterDeadline = "Completion date cannot be after deadline"
	MsgResultsRequired     = "At least one result is required"
)

// pastTensePattern is the generic past-tense signal.
var pastTensePattern = regexp.MustCompile(`(?i)\w+ed\b`)

// RuleSet holds the word lists and limits the rules check against.
type RuleSet struct {
	MinContextWords int
	MaxContextWords int
	// BannedTerms may not appear in a Context (case-insensitive substring).
	BannedTerms []string
	// VagueVerbs may not appear in a Purpose (case-insensitive substring).
	VagueVerbs []string
	// CompletionVerbs count as a past-tense signal in a Result.
	CompletionVerbs []string
}

// DefaultRuleSet returns the built-in rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		MinContextWords: 1,
		MaxContextWords: 5,
		BannedTerms:     []string{"success", "excellence", "transform", "optimize"},
		VagueVerbs:      []string{"improve", "enhance", "support", "optimize", "leverage"},
		CompletionVerbs: []string{"achieved", "completed", "delivered", "implemented", "created", "launched"},
	}
}

// WithLists returns a copy of r where every non-empty list replaces the
// corresponding built-in list.
func (r RuleSet) WithLists(banned, vague, completion []string) RuleSet {
	if len(banned) > 0 {
		r.BannedTerms = normalizeList(banned)
	}
	if len(vague) > 0 {
		r.VagueVerbs = normalizeList(vague)
	}
	if len(completion) > 0 {
		r.CompletionVerbs = normalizeList(completion)
	}
	return r
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RuleValidator runs the deterministic structural checks. It performs no
// I/O and is safe for concurrent use.
type RuleValidator struct {
	rules RuleSet
}

// NewRuleValidator creates a rule validator for rs.
func NewRuleValidator(rs RuleSet) *RuleValidator {
	return &RuleValidator{rules: rs}
}

// Rules returns the rule set in use.
func (v *RuleValidator) Rules() RuleSet {
	return v.rules
}

// Context checks a Context statement. Every failing rule is reported.
func (v *RuleValidator) Context(text string) []string {
	var violations []string

	words := len(strings.Fields(text))
	if words < v.rules.MinContextWords || words > v.rules.MaxContextWords {
		violations = append(violations, fmt.Sprintf(MsgContextWordCount, v.rules.MinContextWords, v.rules.MaxContextWords))
	}
	if containsAny(text, v.rules.BannedTerms) {
		violations = append(violations, MsgContextBanned)
	}
	return violations
}

// Purpose checks a Purpose statement.
func (v *RuleValidator) Purpose(text string) []string {
	var violations []string
	lower := strings.ToLower(text)

	if !strings.Contains(lower, "to ") || !strings.Contains(lower, "by ") {
		violations = append(violations, MsgPurposeStructure)
	}
	if !strings.Contains(lower, "so that") {
		violations = append(violations, MsgPurposeSoThat)
	}
	if containsAny(text, v.rules.VagueVerbs) {
		violations = append(violations, MsgPurposeVague)
	}
	return violations
}

// Result checks one result item. Messages are not labelled with the item
// position; Check does that.
func (v *RuleValidator) Result(item models.ResultDraft, deadline *models.Date) []string {
	var violations []string

	content := strings.TrimSpace(item.Content)
	switch {
	case content == "":
		violations = append(violations, MsgResultEmpty)
	case !containsAny(content, v.rules.CompletionVerbs) && !pastTensePattern.MatchString(content):
		violations = append(violations, MsgResultPastTense)
	}

	if item.CompletionDate != nil && deadline != nil && item.CompletionDate.After(*deadline) {
		violations = append(violations, MsgResultAfterDeadline)
	}
	return violations
}

// Check runs the rules for kind against draft. Results violations are
// labelled "Result N: " with the 1-based item position.
func (v *RuleValidator) Check(kind models.SectionKind, draft models.Draft, deadline *models.Date) []string {
	switch kind {
	case models.SectionContext:
		return v.Context(draft.Text)
	case models.SectionPurpose:
		return v.Purpose(draft.Text)
	case models.SectionResults:
		if len(draft.Results) == 0 {
			return []string{MsgResultsRequired}
		}
		var violations []string
		for i, item := range draft.Results {
			for _, msg := range v.Result(item, deadline) {
				violations = append(violations, resultLabel(i, msg))
			}
		}
		return violations
	default:
		return nil
	}
}

func resultLabel(index int, msg string) string {
	return fmt.Sprintf("Result %d: %s", index+1, msg)
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
