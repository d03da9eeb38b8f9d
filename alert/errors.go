package alert

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNilEvent        = errors.New("vigil/alert: nil event")
	ErrIncompleteEvent = errors.New("vigil/alert: event requires category, service, and type")
	ErrRateLimited     = errors.New("vigil/alert: delivery rate limited")
	ErrCircuitOpen     = errors.New("vigil/alert: delivery circuit breaker open")
)

// Suppression reasons reported by ProcessAlert.
const (
	ReasonDisabled     = "disabled"
	ReasonMaintenance  = "maintenance"
	ReasonBelowMinimum = "below_minimum_severity"
	ReasonSuppressed   = "suppressed"
)

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vigil/alert: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DeliveryError reports a failed webhook post. It is logged, never
// propagated: one broken channel cannot block others.
type DeliveryError struct {
	Channel string
	Status  int
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vigil/alert: delivery to %s failed: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("vigil/alert: delivery to %s failed with status %d", e.Channel, e.Status)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
