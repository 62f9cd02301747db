package registry

import (
	"log/slog"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/workerpool"
	"github.com/starhound/null-llm-go/providers/anthropic"
	"github.com/starhound/null-llm-go/providers/bedrock"
	"github.com/starhound/null-llm-go/providers/cohere"
	"github.com/starhound/null-llm-go/providers/gemini"
	"github.com/starhound/null-llm-go/providers/lorem"
	"github.com/starhound/null-llm-go/providers/ollama"
	"github.com/starhound/null-llm-go/providers/openaicompat"
)

// defaultFactories maps every known provider to its adapter. Adapters that
// run blocking SDK loops share pool.
func defaultFactories(pool *workerpool.Pool) map[llmprovider.ProviderID]Factory {
	f := map[llmprovider.ProviderID]Factory{
		llmprovider.ProviderAnthropic: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return anthropic.New(cfg, anthropic.WithLogger(l), anthropic.WithWorkerPool(pool))
		},
		llmprovider.ProviderClaudeOAuth: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return anthropic.NewOAuth(cfg, anthropic.WithLogger(l), anthropic.WithWorkerPool(pool))
		},
		llmprovider.ProviderBedrock: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return bedrock.New(cfg, bedrock.WithLogger(l), bedrock.WithWorkerPool(pool))
		},
		llmprovider.ProviderGoogle: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return gemini.New(cfg, gemini.WithLogger(l))
		},
		llmprovider.ProviderGoogleVertex: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return gemini.New(cfg, gemini.WithLogger(l))
		},
		llmprovider.ProviderOllama: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return ollama.New(cfg, ollama.WithLogger(l))
		},
		llmprovider.ProviderCohere: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return cohere.New(cfg, cohere.WithLogger(l))
		},
		llmprovider.ProviderLorem: func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return lorem.New(cfg, lorem.WithLogger(l))
		},
	}

	for _, info := range llmprovider.KnownProviders() {
		if _, ok := openaicompat.PresetFor(info.ID); !ok {
			continue
		}
		f[info.ID] = func(cfg llmprovider.ProviderConfig, l *slog.Logger) (llmprovider.Provider, error) {
			return openaicompat.New(cfg, openaicompat.WithLogger(l))
		}
	}
	return f
}
