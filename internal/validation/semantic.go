package validation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// Outcome is the classification of one model response.
type Outcome int

const (
	// OutcomePass means the response raised nothing.
	OutcomePass Outcome = iota
	// OutcomeSuggestion means the response raised a soft concern.
	OutcomeSuggestion
	// OutcomeViolation means the response judged the text invalid.
	OutcomeViolation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuggestion:
		return "suggestion"
	case OutcomeViolation:
		return "violation"
	default:
		return "pass"
	}
}

// Judgment is a classified model response.
type Judgment struct {
	Outcome Outcome
	// Text is the raw response, kept verbatim for violations and suggestions.
	Text string
}

// Classify sorts a free-text model response by keyword. "not valid" or
// "invalid" is a violation; otherwise "concern" or "improve" is a
// suggestion; anything else passes. A response explaining why something
// is "not invalid" is misread as a violation; this is accepted.
func Classify(response string) Judgment {
	lower := strings.ToLower(response)
	switch {
	case strings.Contains(lower, "not valid") || strings.Contains(lower, "invalid"):
		return Judgment{Outcome: OutcomeViolation, Text: response}
	case strings.Contains(lower, "concern") || strings.Contains(lower, "improve"):
		return Judgment{Outcome: OutcomeSuggestion, Text: response}
	default:
		return Judgment{Outcome: OutcomePass, Text: response}
	}
}

// SemanticValidator asks the model to judge one text against the rubric
// for its section.
type SemanticValidator struct {
	completer llm.Completer
	maxTokens int
	timeout   time.Duration
}

// NewSemanticValidator creates a semantic validator. A zero timeout leaves
// the caller's deadline as the only bound.
func NewSemanticValidator(c llm.Completer, maxTokens int, timeout time.Duration) *SemanticValidator {
	return &SemanticValidator{completer: c, maxTokens: maxTokens, timeout: timeout}
}

// Judge issues one completion for content of kind and classifies the reply.
// Any failure to obtain a reply is returned as an *llm.UpstreamError.
func (s *SemanticValidator) Judge(ctx context.Context, kind models.SectionKind, content string, req Request) (Judgment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.completer.Complete(ctx, systemPrompt(req.Mode), userPrompt(kind, content, req), s.maxTokens)
	if err != nil {
		return Judgment{}, upstream(err)
	}
	return Classify(reply), nil
}

// upstream guarantees err matches llm.ErrUpstream.
func upstream(err error) error {
	if errors.Is(err, llm.ErrUpstream) {
		return err
	}
	return llm.AsUpstream("completer", err)
}
