package config

const (
	defaultWorkers     = 3
	defaultHoleTimeout = "10m"
	defaultRanker      = "jaccardIndex"

	defaultCheckerTimeout = "30s"
	defaultCheckerWorkers = 1

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "embeddinggemma"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "proofpilot.completions"

	defaultCensoredValue = "***"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Completion: CompletionConfig{
			Workers:     defaultWorkers,
			HoleTimeout: defaultHoleTimeout,
			Ranker:      defaultRanker,
		},
		GenerationsLog: GenerationsLogConfig{
			Censor: map[string]any{"apiKey": defaultCensoredValue},
		},
		Checker: CheckerConfig{
			Timeout: defaultCheckerTimeout,
			Workers: defaultCheckerWorkers,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
			Model:    defaultEmbeddingModel,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
