package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI completes prompts with the OpenAI chat completions API or any
// OpenAI-compatible endpoint.
type OpenAI struct {
	client  openai.Client
	model   string
	tracker *TokenTracker
}

// OpenAIConfig contains configuration for creating an OpenAI completer.
type OpenAIConfig struct {
	// Model defaults to gpt-4o-mini.
	Model   string
	APIKey  string
	BaseURL string
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set llm.api_key or OPENAI_API_KEY")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		// gpt-4o-mini pricing: $0.15/1M input, $0.60/1M output (approximate).
		tracker: NewTokenTracker(0.15, 0.60),
	}, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string {
	return o.model
}

// Tracker returns the token tracker for this completer.
func (o *OpenAI) Tracker() *TokenTracker {
	return o.tracker
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		o.tracker.Fail()
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", classify("openai", fmt.Errorf("chat.completions.new: %w", err), status)
	}

	o.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", emptyResponse("openai")
	}
	return resp.Choices[0].Message.Content, nil
}
