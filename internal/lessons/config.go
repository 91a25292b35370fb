package lessons

// Config holds lesson generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for lesson generation.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.5,
	}
}

// FallbackDurationSeconds is the length of the templated lesson.
const FallbackDurationSeconds = 5 * 60
