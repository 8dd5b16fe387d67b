package llm

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOffline   = "offline"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	AWSRegion  string
	AWSProfile string
}

// New builds the Completer named by s.Provider.
func New(s Settings) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAI(OpenAIConfig{Model: s.Model, APIKey: s.APIKey, BaseURL: s.BaseURL})
	case ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{
			Model:   anthropic.Model(s.Model),
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
		})
	case ProviderBedrock:
		return NewAnthropic(AnthropicConfig{
			Model:         anthropic.Model(s.Model),
			UseAWSBedrock: true,
			AWSRegion:     s.AWSRegion,
			AWSProfile:    s.AWSProfile,
		})
	case ProviderOffline:
		return NewOffline(""), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want openai, anthropic, bedrock or offline)", s.Provider)
	}
}
