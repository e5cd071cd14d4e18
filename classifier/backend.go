package classifier

import (
	"context"
	"fmt"
)

// Backend names accepted by NewCompleter.
const (
	BackendOpenAI    = "openai"
	BackendWorkersAI = "workers-ai"
	BackendGemini    = "gemini"
	BackendStatic    = "static"
)

// BackendConfig selects and configures a Completer.
type BackendConfig struct {
	Backend string
	Model   string
	APIKey  string
	BaseURL string
	// AccountID is the Cloudflare account for the workers-ai backend.
	AccountID string
	// Verdict is returned by the static backend.
	Verdict string
}

// NewCompleter creates the Completer named by cfg.Backend.
func NewCompleter(ctx context.Context, cfg BackendConfig) (Completer, error) {
	switch cfg.Backend {
	case BackendOpenAI:
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case BackendWorkersAI:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			if cfg.AccountID == "" {
				return nil, fmt.Errorf("%s backend needs an account id or base url", cfg.Backend)
			}
			baseURL = fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/ai/v1", cfg.AccountID)
		}
		model := cfg.Model
		if model == "" {
			model = WorkersAIModel
		}
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   model,
			BaseURL: baseURL,
		}), nil
	case BackendGemini:
		return NewGeminiCompleter(ctx, cfg.APIKey, cfg.Model)
	case BackendStatic:
		return StaticCompleter{Verdict: cfg.Verdict}, nil
	default:
		return nil, fmt.Errorf("unsupported classifier backend: %q", cfg.Backend)
	}
}
