package query

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"surveyor/internal/logging"
)

// Options selects and configures a provider for the factory.
type Options struct {
	Provider    string // "sonar" or "gemini"; empty detects from environment
	APIKey      string // empty falls back to the provider's env var
	Model       string
	BaseURL     string
	ColdTimeout time.Duration
	WarmTimeout time.Duration
	Retry       RetryPolicy
}

// New builds the handler for opts.Provider, falling back to environment
// detection when no provider is named.
func New(ctx context.Context, opts Options) (Handler, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = DetectProvider()
		logging.Boot("no provider configured, detected %q", provider)
	}

	switch provider {
	case "sonar", "perplexity":
		cfg := DefaultSonarConfig(resolveKey(opts.APIKey, "PERPLEXITY_API_KEY"))
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.ColdTimeout > 0 {
			cfg.ColdTimeout = opts.ColdTimeout
		}
		if opts.WarmTimeout > 0 {
			cfg.WarmTimeout = opts.WarmTimeout
		}
		cfg.Retry = opts.Retry
		return NewSonarHandlerWithConfig(cfg), nil

	case "gemini":
		cfg := DefaultGeminiConfig(resolveKey(opts.APIKey, "GEMINI_API_KEY"))
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.ColdTimeout > 0 {
			cfg.ColdTimeout = opts.ColdTimeout
		}
		if opts.WarmTimeout > 0 {
			cfg.WarmTimeout = opts.WarmTimeout
		}
		cfg.Retry = opts.Retry
		return NewGeminiHandler(ctx, cfg)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// DetectProvider picks a provider from the credentials present in the
// environment. Sonar wins when both keys are set; it is also the default
// when neither is, so the missing-key error names the primary provider.
func DetectProvider() string {
	if os.Getenv("PERPLEXITY_API_KEY") != "" {
		return "sonar"
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		return "gemini"
	}
	return "sonar"
}

func resolveKey(key, envVar string) string {
	if key != "" {
		return key
	}
	return os.Getenv(envVar)
}
