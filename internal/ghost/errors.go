package ghost

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is an error reported by the Ghost Admin API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Context    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("ghost: %d %s", e.StatusCode, e.Message)
	if e.Type != "" {
		msg += " (" + e.Type + ")"
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

type errorEnvelope struct {
	Errors []struct {
		Message string `json:"message"`
		Context string `json:"context"`
		Type    string `json:"type"`
	} `json:"errors"`
}

// decodeError turns an error response into an *APIError. Bodies that are not
// a Ghost error envelope fall back to the HTTP status text.
func decodeError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		first := env.Errors[0]
		if first.Message != "" {
			apiErr.Message = first.Message
		}
		apiErr.Type = first.Type
		apiErr.Context = first.Context
	}
	return apiErr
}
