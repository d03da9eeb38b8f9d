package server

import "fmt"

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vigil/server: invalid %s: %s", e.Field, e.Reason)
}
