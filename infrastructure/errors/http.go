// Package errors decodes error responses from upstream HTTP services.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of an error response is retained.
const maxErrorBody = 4 << 10

// HTTPError is a non-2xx response from an upstream service.
type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// ParseHTTPError returns nil for 2xx responses and an *HTTPError otherwise.
// It consumes at most maxErrorBody bytes of resp.Body.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		httpErr.Message = "unreadable error body"
		return httpErr
	}
	httpErr.Body = string(body)

	// Both {"error":"..."} and the nested {"error":{"message":"..."}} shapes occur.
	var flat struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &flat) == nil {
		switch v := flat.Error.(type) {
		case string:
			httpErr.Message = v
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				httpErr.Message = msg
			}
		}
		if httpErr.Message == "" {
			httpErr.Message = flat.Message
		}
	}

	return httpErr
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
