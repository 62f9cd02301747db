package bedrock

import (
	"context"
	"net/http"
)

type foundationModels struct {
	ModelSummaries []struct {
		ModelID                    string   `json:"modelId"`
		ProviderName               string   `json:"providerName"`
		ResponseStreamingSupported bool     `json:"responseStreamingSupported"`
		OutputModalities           []string `json:"outputModalities"`
	} `json:"modelSummaries"`
}

func (p *Provider) listFoundationModels(ctx context.Context) ([]string, error) {
	var out foundationModels
	if err := p.control.JSON(ctx, http.MethodGet, "/foundation-models?byOutputModality=TEXT", nil, nil, &out); err != nil {
		return nil, err
	}
	models := make([]string, 0, len(out.ModelSummaries))
	for _, m := range out.ModelSummaries {
		if FamilyOf(m.ModelID) == FamilyUnsupported {
			continue
		}
		models = append(models, m.ModelID)
	}
	return models, nil
}

// ListModels returns the Claude and Llama foundation models in the region,
// or FallbackModels when the control plane cannot be reached.
func (p *Provider) ListModels(ctx context.Context) []string {
	models, err := p.listFoundationModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			p.logger.Debug("list foundation models failed", "error", err)
		}
		return append([]string(nil), FallbackModels...)
	}
	return models
}

// ValidateConnection lists foundation models, which needs valid credentials
// but generates nothing.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.listFoundationModels(ctx)
	if err != nil {
		p.logger.Debug("connection check failed", "error", err)
	}
	return err == nil
}
