package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// ErrorFromResponse consumes resp.Body and turns a non-2xx response into a
// classified *llmprovider.ProviderError. The vendor's message is extracted
// from the common JSON envelopes; anything else is reported verbatim.
func ErrorFromResponse(provider string, resp *http.Response) *llmprovider.ProviderError {
	defer resp.Body.Close()

	var raw []byte
	if body, err := DecodeBody(resp); err == nil {
		raw, _ = io.ReadAll(io.LimitReader(body, maxErrorBody))
	} else {
		raw, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}

	message := ErrorMessage(raw)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if message == "" {
		message = "unexpected status"
	}

	pe := llmprovider.NewProviderError(provider, resp.StatusCode, message)
	if pe.Err == llmprovider.ErrRateLimited {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			pe.Message += " (retry after " + retryAfter + ")"
		}
	}
	return pe
}

// ErrorMessage extracts the human-readable message from the error envelopes
// vendors use:
//
//	{"error": {"message": "..."}}   OpenAI, Anthropic, Gemini
//	{"error": "..."}                Ollama
//	{"message": "..."}              Cohere
//	[{"error": {"message": "..."}}] Gemini streaming
func ErrorMessage(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return ""
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}

	if strings.HasPrefix(text, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(text), &list); err == nil && len(list) > 0 {
			return ErrorMessage(list[0])
		}
		return text
	}

	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return text
	}

	if len(envelope.Error) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil {
			if nested.Message != "" {
				return nested.Message
			}
			if nested.Type != "" {
				return nested.Type
			}
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	if envelope.Detail != "" {
		return envelope.Detail
	}
	return text
}

// Truncated reports a stream that ended cleanly before the vendor's
// terminal marker. It is a retryable connection error.
func Truncated(provider, marker string) *llmprovider.ProviderError {
	return &llmprovider.ProviderError{
		Provider:  provider,
		Message:   fmt.Sprintf("stream ended before %s", marker),
		Retryable: true,
		Err:       llmprovider.ErrConnection,
	}
}
