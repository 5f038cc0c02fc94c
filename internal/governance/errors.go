package governance

import (
	"errors"
	"fmt"

	"dao-governance-go/internal/models"
)

// Sentinel errors for the expected business failure classes. Callers match
// with errors.Is and map to their own response shapes; none of these should
// ever be produced for infrastructure failures.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrSecurityBlocked = errors.New("security check failed")
)

func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// SecurityBlockedError is returned when the fraud gate blocks an action.
// It is distinguishable from ErrValidation so callers can present a
// security message instead of a field-level one, and it carries the
// assessment for the audit trail.
type SecurityBlockedError struct {
	Assessment models.FraudAssessment
}

func (e *SecurityBlockedError) Error() string {
	return fmt.Sprintf("security check failed: action %s blocked with risk score %d",
		e.Assessment.ActionType, e.Assessment.RiskScore)
}

func (e *SecurityBlockedError) Unwrap() error { return ErrSecurityBlocked }
