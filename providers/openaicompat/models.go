package openaicompat

import (
	"context"
	"net/http"
	"sort"

	llmprovider "github.com/starhound/null-llm-go"
)

// NvidiaFreeModels are the NVIDIA NIM models available on the free tier.
// Listing on the nvidia preset is restricted to these.
var NvidiaFreeModels = []string{
	"meta/llama-3.1-8b-instruct",
	"meta/llama-3.1-70b-instruct",
	"meta/llama-3.2-3b-instruct",
	"meta/llama-3.3-70b-instruct",
	"mistralai/mistral-7b-instruct-v0.3",
	"mistralai/mixtral-8x7b-instruct-v0.1",
	"mistralai/mixtral-8x22b-instruct-v0.1",
	"microsoft/phi-3-mini-128k-instruct",
	"microsoft/phi-3-small-128k-instruct",
	"microsoft/phi-3-medium-128k-instruct",
	"google/gemma-2-9b-it",
	"google/gemma-2-27b-it",
	"nvidia/nemotron-mini-4b-instruct",
	"nvidia/llama-3.1-nemotron-70b-instruct",
	"deepseek-ai/deepseek-coder-6.7b-instruct",
	"ibm/granite-3.0-8b-instruct",
	"qwen/qwen2-7b-instruct",
}

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	var out ModelList
	if err := p.client.JSON(ctx, http.MethodGet, "/models", nil, nil, &out); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}

// ListModels returns the vendor's /models listing, sorted. Azure lists only
// the configured deployment. On failure the preset's fallback list (or the
// configured model) is returned.
func (p *Provider) ListModels(ctx context.Context) []string {
	if p.id == llmprovider.ProviderAzure {
		return []string{p.model}
	}

	models, err := p.fetchModels(ctx)
	if err != nil {
		p.logger.Debug("list models failed", "error", err)
	}

	if p.id == llmprovider.ProviderNvidia {
		return filterFree(models)
	}
	if len(models) == 0 {
		return p.fallbackModels()
	}
	return models
}

// filterFree keeps the free-tier models, falling back to the whole free
// list when none of them are offered.
func filterFree(models []string) []string {
	free := make(map[string]bool, len(NvidiaFreeModels))
	for _, m := range NvidiaFreeModels {
		free[m] = true
	}

	var out []string
	for _, m := range models {
		if free[m] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = append([]string(nil), NvidiaFreeModels...)
	}
	sort.Strings(out)
	return out
}

func (p *Provider) fallbackModels() []string {
	if len(p.preset.FallbackModels) == 0 {
		return []string{p.model}
	}
	return append([]string(nil), p.preset.FallbackModels...)
}

// ValidateConnection lists models. Azure has no listing endpoint at the data
// plane, so a one-token completion is sent instead.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	var err error
	if p.id == llmprovider.ProviderAzure {
		req := ChatCompletionRequest{
			Model:     p.model,
			Messages:  []Message{{Role: "user", Content: stringPtr("Hi")}},
			MaxTokens: llmprovider.Int(1),
		}
		err = p.client.JSON(ctx, http.MethodPost, p.chatPath(), nil, req, nil)
	} else {
		_, err = p.fetchModels(ctx)
	}
	if err != nil {
		p.logger.Debug("connection check failed", "error", err)
	}
	return err == nil
}
