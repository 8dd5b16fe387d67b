package validation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/llm"
)

// ExampleGenerator asks the model for one corrective example of a section.
type ExampleGenerator struct {
	completer llm.Completer
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewExampleGenerator creates an example generator.
func NewExampleGenerator(c llm.Completer, maxTokens int, timeout time.Duration, logger *zap.Logger) *ExampleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExampleGenerator{completer: c, maxTokens: maxTokens, timeout: timeout, logger: logger}
}

// Generate returns a trimmed example for req.Kind, or "" if the call fails.
// A failure never affects the verdict it would have been attached to.
func (g *ExampleGenerator) Generate(ctx context.Context, req Request) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := g.completer.Complete(ctx, systemPrompt(req.Mode), examplePrompt(req), g.maxTokens)
	if err != nil {
		g.logger.Warn("example generation failed",
			zap.String("section", string(req.Kind)),
			zap.Int("attempt", req.Attempt),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(reply)
}
