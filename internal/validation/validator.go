package validation

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/pkg/models"
)

// Verdict summaries.
const (
	feedbackValid   = "This %s meets all requirements. Ready to lock in!"
	feedbackInvalid = "Please address the following issues before proceeding."
)

// Locked carries the already-locked sibling sections of a session.
type Locked struct {
	Context string
	Purpose string
	Results []string
}

// text returns the locked content of kind as a single string.
func (l Locked) text(kind models.SectionKind) string {
	switch kind {
	case models.SectionContext:
		return l.Context
	case models.SectionPurpose:
		return l.Purpose
	case models.SectionResults:
		return strings.Join(l.Results, "; ")
	default:
		return ""
	}
}

// Request is one validation call.
type Request struct {
	Kind    models.SectionKind
	Draft   models.Draft
	Mode    models.CommunicationMode
	Pathway models.Pathway
	// Deadline bounds Results completion dates. Nil disables the check.
	Deadline *models.Date
	// Locked holds sibling sections for cross-section prompts.
	Locked Locked
	// Attempt is the 1-based attempt number this validation counts as.
	Attempt int
}

// Options configures a Validator.
type Options struct {
	// MaxTokens bounds each semantic completion.
	MaxTokens int
	// ExampleMaxTokens bounds the example completion.
	ExampleMaxTokens int
	// CallTimeout bounds each completion. Zero disables the per-call bound.
	CallTimeout time.Duration
	// ExampleThreshold is the attempt from which failing verdicts carry an example.
	ExampleThreshold int
	// MaxParallel bounds concurrent Results item calls.
	MaxParallel int
	Rules       RuleSet
	Logger      *zap.Logger
}

// DefaultOptions returns the stock limits and rules.
func DefaultOptions() Options {
	return Options{
		MaxTokens:        1000,
		ExampleMaxTokens: 200,
		CallTimeout:      30 * time.Second,
		ExampleThreshold: 3,
		MaxParallel:      4,
		Rules:            DefaultRuleSet(),
	}
}

// Validator composes rule and semantic checks into a verdict. It keeps no
// per-call state and is safe for concurrent use.
type Validator struct {
	rules       atomic.Pointer[RuleValidator]
	semantic    *SemanticValidator
	examples    *ExampleGenerator
	threshold   int
	maxParallel int
	logger      *zap.Logger
}

// NewValidator creates a validator backed by c. Zero-valued options fall
// back to DefaultOptions.
func NewValidator(c llm.Completer, opts Options) *Validator {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.ExampleMaxTokens <= 0 {
		opts.ExampleMaxTokens = def.ExampleMaxTokens
	}
	if opts.ExampleThreshold <= 0 {
		opts.ExampleThreshold = def.ExampleThreshold
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = def.MaxParallel
	}
	if opts.Rules.MaxContextWords == 0 {
		opts.Rules = def.Rules.WithLists(opts.Rules.BannedTerms, opts.Rules.VagueVerbs, opts.Rules.CompletionVerbs)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	v := &Validator{
		semantic:    NewSemanticValidator(c, opts.MaxTokens, opts.CallTimeout),
		examples:    NewExampleGenerator(c, opts.ExampleMaxTokens, opts.CallTimeout, opts.Logger),
		threshold:   opts.ExampleThreshold,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
	}
	v.rules.Store(NewRuleValidator(opts.Rules))
	return v
}

// SetRules swaps the rule set used by subsequent calls.
func (v *Validator) SetRules(rs RuleSet) {
	v.rules.Store(NewRuleValidator(rs))
	v.logger.Info("validation rules updated",
		zap.Strings("banned_terms", rs.BannedTerms),
		zap.Strings("vague_verbs", rs.VagueVerbs),
		zap.Strings("completion_verbs", rs.CompletionVerbs),
	)
}

// Rules returns the rule validator currently in use.
func (v *Validator) Rules() *RuleValidator {
	return v.rules.Load()
}

// Validate judges req.Draft. Rule violations come first, then semantic
// violations, each in item order. An empty draft is judged by the rules
// alone. A failed completion returns an error matching llm.ErrUpstream and
// no verdict.
func (v *Validator) Validate(ctx context.Context, req Request) (*models.Verdict, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown section kind %q", req.Kind)
	}

	rules := v.rules.Load()
	violations := rules.Check(req.Kind, req.Draft, req.Deadline)
	var suggestions []string

	var (
		judgments []Judgment
		err       error
	)
	if req.Kind == models.SectionResults {
		judgments, err = v.judgeResults(ctx, req)
	} else if strings.TrimSpace(req.Draft.Text) != "" {
		var j Judgment
		j, err = v.semantic.Judge(ctx, req.Kind, req.Draft.Text, req)
		judgments = []Judgment{j}
	}
	if err != nil {
		v.logger.Warn("semantic validation failed",
			zap.String("section", string(req.Kind)),
			zap.Int("attempt", req.Attempt),
			zap.Error(err),
		)
		return nil, err
	}

	for i, j := range judgments {
		text := j.Text
		if req.Kind == models.SectionResults {
			text = resultLabel(i, text)
		}
		switch j.Outcome {
		case OutcomeViolation:
			violations = append(violations, text)
		case OutcomeSuggestion:
			suggestions = append(suggestions, text)
		}
	}

	verdict := &models.Verdict{
		Valid:       len(violations) == 0,
		Violations:  nonNil(violations),
		Suggestions: nonNil(suggestions),
	}
	if verdict.Valid {
		verdict.Feedback = fmt.Sprintf(feedbackValid, req.Kind)
	} else {
		verdict.Feedback = feedbackInvalid
		if req.Attempt >= v.threshold {
			verdict.Example = v.examples.Generate(ctx, req)
		}
	}

	v.logger.Info("section validated",
		zap.String("section", string(req.Kind)),
		zap.Bool("valid", verdict.Valid),
		zap.Int("attempt", req.Attempt),
		zap.Int("violations", len(verdict.Violations)),
		zap.Int("suggestions", len(verdict.Suggestions)),
		zap.Bool("example", verdict.Example != ""),
	)
	return verdict, nil
}

// judgeResults runs one semantic call per non-empty result item, at most
// maxParallel at a time. The returned slice is indexed like req.Draft.Results;
// skipped items hold a pass.
func (v *Validator) judgeResults(ctx context.Context, req Request) ([]Judgment, error) {
	judgments := make([]Judgment, len(req.Draft.Results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxParallel)
	for i, item := range req.Draft.Results {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		g.Go(func() error {
			j, err := v.semantic.Judge(gctx, models.SectionResults, content, req)
			if err != nil {
				return fmt.Errorf("result %d: %w", i+1, err)
			}
			judgments[i] = j
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return judgments, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
