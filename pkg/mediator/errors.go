package mediator

import "fmt"

// ValidationError reports a rejected intent or constraints payload. The
// HTTP boundary maps this to a 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mediator: invalid %s: %s", e.Field, e.Reason)
}
