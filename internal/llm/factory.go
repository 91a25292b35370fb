package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/checkin/internal/store"
)

// NewProvider creates a Provider from configuration, decorated as
// caller → timeout → retry → logging → base. events may be nil.
func NewProvider(ctx context.Context, cfg Config, events store.LLMEventRepo, logger *slog.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		// An empty mock fails every call, which drives callers onto their
		// offline fallbacks without waiting on retries.
		return WithLogging(NewMockProvider(), cfg.Provider, events, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, cfg.Provider, events, logger)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout), nil
}
