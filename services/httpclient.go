package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const completionHTTPTimeout = 30 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type completionAPIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type completionErrorEnvelope struct {
	Error *completionAPIError `json:"error,omitempty"`
}

func newDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: completionHTTPTimeout}
}

// newStreamingHTTPClient has no overall timeout; a streaming completion can
// legitimately outlive any fixed deadline. Cancellation comes from ctx.
func newStreamingHTTPClient() *http.Client {
	return &http.Client{}
}

func decodeCompletionError(body []byte) *completionAPIError {
	if len(body) == 0 {
		return nil
	}

	var envelope completionErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if envelope.Error == nil {
		return nil
	}

	envelope.Error.Message = strings.TrimSpace(envelope.Error.Message)
	return envelope.Error
}

func buildCompletionAPIError(statusCode int, body []byte) error {
	if apiErr := decodeCompletionError(body); apiErr != nil {
		if apiErr.Code != "" && apiErr.Message != "" {
			return fmt.Errorf("completion api error (%d, %s): %s", statusCode, apiErr.Code, apiErr.Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("completion api error (%d): %s", statusCode, apiErr.Message)
		}
		if apiErr.Code != "" {
			return fmt.Errorf("completion api error (%d, %s)", statusCode, apiErr.Code)
		}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return fmt.Errorf("completion api error (%d): %s", statusCode, snippet)
}
