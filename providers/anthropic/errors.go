package anthropic

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
)

// mapError converts SDK errors to the shared taxonomy.
func mapError(provider llmprovider.ProviderID, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := transport.ErrorMessage([]byte(apiErr.RawJSON()))
		if message == "" {
			message = apiErr.Error()
		}
		return llmprovider.NewProviderError(provider.String(), apiErr.StatusCode, message)
	}
	return llmprovider.Classify(provider.String(), err)
}
