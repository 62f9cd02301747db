package gemini

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

func (p *Provider) fetchModels(ctx context.Context) ([]string, error) {
	var out modelList
	if err := p.catalog.JSON(ctx, http.MethodGet, "/models?pageSize=100", nil, nil, &out); err != nil {
		return nil, err
	}

	var names []string
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	for _, m := range out.PublisherModels {
		names = append(names, m.Name)
	}

	models := make([]string, 0, len(names))
	for _, name := range names {
		// "models/gemini-2.0-flash" or "publishers/google/models/gemini-2.0-flash"
		name = name[strings.LastIndex(name, "/")+1:]
		if strings.HasPrefix(name, "gemini") {
			models = append(models, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(models)))
	return models, nil
}

// ListModels returns the Gemini generation models, newest first, or
// FallbackModels when listing fails.
func (p *Provider) ListModels(ctx context.Context) []string {
	models, err := p.fetchModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			p.logger.Debug("list models failed", "error", err)
		}
		return append([]string(nil), FallbackModels...)
	}
	return models
}

// ValidateConnection sends a one-word prompt with a one-token budget.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	one := 1
	req := GenerateContentRequest{
		Contents:         []Content{{Role: "user", Parts: []Part{{Text: "Hi"}}}},
		GenerationConfig: &GenerationConfig{MaxOutputTokens: &one},
	}
	var resp GenerateContentResponse
	err := p.client.JSON(ctx, http.MethodPost, p.modelPath("generateContent"), nil, req, &resp)
	if err != nil {
		p.logger.Debug("connection check failed", "error", err)
	}
	return err == nil
}
