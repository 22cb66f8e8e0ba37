package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPeriodNotFound         = errors.New("payroll period not found")
	ErrConfigurationMissing   = errors.New("no active rate configuration for date")
	ErrInvalidStateTransition = errors.New("invalid payroll period state transition")
)

// EmployeeProcessingError aborts a whole run; it carries the offending
// employee so the caller can fix the underlying data and retry.
type EmployeeProcessingError struct {
	EmployeeID string
	Err        error
}

func (e *EmployeeProcessingError) Error() string {
	return fmt.Sprintf("processing employee %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeProcessingError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
