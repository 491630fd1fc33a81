package domain

import "fmt"

// ValidationError is a client-side field validation failure. It is resolved
// entirely before any network call is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}
