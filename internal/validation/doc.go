// Package validation judges CPR section drafts.
//
// # Overview
//
// A draft passes through two layers:
//
//  1. Rules - deterministic structural checks (word counts, required
//     phrases, banned terms, past tense, deadlines). See RuleValidator.
//  2. Semantic - one LLM completion per text (one per item for Results),
//     classified by keyword into violation, suggestion or pass. See
//     SemanticValidator.
//
// Validator composes both, decides validity, and asks ExampleGenerator
// for a corrective example once a section has failed often enough.
//
// # Usage
//
//	v := validation.NewValidator(completer, validation.Options{
//	    MaxTokens:        1000,
//	    ExampleMaxTokens: 200,
//	    ExampleThreshold: 3,
//	    CallTimeout:      30 * time.Second,
//	})
//
//	verdict, err := v.Validate(ctx, validation.Request{
//	    Kind:    models.SectionPurpose,
//	    Draft:   models.Draft{Text: "To ship the beta by pairing daily so that pilots start in May"},
//	    Mode:    models.ModeExecutive,
//	    Pathway: models.PathwayCPR,
//	    Attempt: 1,
//	})
//	if errors.Is(err, llm.ErrUpstream) {
//	    // provider failed: ask the user to try again
//	}
//
// # Failure semantics
//
// A failed completion never becomes a verdict. Validate returns an error
// matching llm.ErrUpstream and no verdict. Example generation is the one
// exception: its failure only drops the example.
package validation
