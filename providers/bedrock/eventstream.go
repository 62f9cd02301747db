package bedrock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
)

const eventStreamContentType = "application/vnd.amazon.eventstream"

// exceptionStatus maps InvokeModelWithResponseStream exception types to
// the HTTP status the same failure has on the blocking API.
var exceptionStatus = map[string]int{
	"throttlingException":           http.StatusTooManyRequests,
	"validationException":           http.StatusBadRequest,
	"modelTimeoutException":         http.StatusRequestTimeout,
	"modelStreamErrorException":     http.StatusFailedDependency,
	"internalServerException":       http.StatusInternalServerError,
	"serviceUnavailableException":   http.StatusServiceUnavailable,
	"accessDeniedException":         http.StatusForbidden,
	"resourceNotFoundException":     http.StatusNotFound,
	"serviceQuotaExceededException": http.StatusTooManyRequests,
}

func headerString(h eventstream.Headers, name string) string {
	if v, ok := h.Get(name).(eventstream.StringValue); ok {
		return string(v)
	}
	return ""
}

// readEvents decodes an AWS event stream and calls fn with the JSON carried
// by each "chunk" event, base64 already removed. It returns nil at a clean
// end of stream or as soon as fn returns false. Exception and error frames
// become classified provider errors.
func readEvents(provider string, body io.Reader, fn func(chunk []byte) bool) error {
	dec := eventstream.NewDecoder()
	for {
		msg, err := dec.Decode(body, nil)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return transport.Truncated(provider, "the end of the event stream")
		}
		if err != nil {
			return llmprovider.Classify(provider, fmt.Errorf("error reading event stream: %w", err))
		}

		switch headerString(msg.Headers, ":message-type") {
		case "event":
			if headerString(msg.Headers, ":event-type") != "chunk" {
				continue
			}
			var payload struct {
				Bytes []byte `json:"bytes"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return &llmprovider.ProviderError{Provider: provider, Message: fmt.Sprintf("malformed chunk: %v", err), Err: llmprovider.ErrProvider}
			}
			if !fn(payload.Bytes) {
				return nil
			}
		case "exception":
			kind := headerString(msg.Headers, ":exception-type")
			status, ok := exceptionStatus[kind]
			if !ok {
				status = http.StatusInternalServerError
			}
			return llmprovider.NewProviderError(provider, status, llmprovider.GetOrDefault(transport.ErrorMessage(msg.Payload), kind))
		case "error":
			return llmprovider.NewProviderError(provider, 0, fmt.Sprintf("%s: %s",
				headerString(msg.Headers, ":error-code"), headerString(msg.Headers, ":error-message")))
		}
	}
}
