package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error taxonomy for the remote API client. Callers classify with
// errors.Is/errors.As; no sentinel ever reaches the presentation layer as a
// panic.
var (
	// ErrNetworkUnreachable: no connectivity, failed health probe, or open
	// circuit breaker. Requests fail fast instead of hanging.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrTimeout: the request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrAuthRequired: missing token detected before a call was attempted.
	ErrAuthRequired = errors.New("authentication required")
)

// HTTPError is a non-2xx response carrying the server's error body.
type HTTPError struct {
	Status  int
	Payload []byte
}

func (e *HTTPError) Error() string {
	if msg := serverMessage(e.Payload); msg != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// serverMessage extracts {"error": "..."} or {"message": "..."} from an
// error body, best effort.
func serverMessage(payload []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// ParseError is a malformed server payload.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
