package generation

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/qaid/internal/config"
)

// localAPIKey is sent to local servers that ignore authentication.
const localAPIKey = "sk-local"

// NewFactory returns a Factory that builds retrying OpenAI-compatible clients
// from cfg. An empty provider name selects the configured active provider.
func NewFactory(cfg config.Config, opts ...ClientOption) Factory {
	policy := RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay.Duration,
		MaxDelay:     cfg.Retry.MaxDelay.Duration,
		Multiplier:   cfg.Retry.Multiplier,
	}
	if cfg.Provider.Timeout.Duration > 0 {
		opts = append([]ClientOption{WithTimeout(cfg.Provider.Timeout.Duration)}, opts...)
	}

	return func(provider string) (Generator, error) {
		name := strings.ToLower(strings.TrimSpace(provider))
		if name == "" {
			name = cfg.Provider.Active
		}
		if name == "" {
			name = config.DefaultProvider
		}

		target, ok := cfg.Providers[name]
		if !ok {
			return nil, NewError(ErrProviderMisconfigured, name, "configure", fmt.Sprintf("unknown provider %q", name), nil)
		}
		if target.BaseURL == "" || target.Model == "" {
			return nil, NewError(ErrProviderMisconfigured, name, "configure", "base url and model must be set", nil)
		}

		key := config.GetAPIKey(cfg, name)
		if key == "" {
			if name != "local" {
				return nil, NewError(ErrConnection, name, "configure", "api key is not configured", nil)
			}
			key = localAPIKey
		}

		client := NewOpenAIClient(name, target.BaseURL, target.Model, key, opts...)
		return WithRetry(client, policy), nil
	}
}
