package inference

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/scrypster/stash/internal/config"
)

// NewClientFromConfig creates the inference client selected by configuration.
// The limiter is shared across every client created for the process.
func NewClientFromConfig(cfg config.InferenceConfig, limiter *rate.Limiter) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, limiter), nil
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, limiter), nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
}

// NewLimiterFromConfig builds the process-wide inference rate limiter.
// Constructed once at startup and passed down; never a package-level global.
func NewLimiterFromConfig(cfg config.InferenceConfig) *rate.Limiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
