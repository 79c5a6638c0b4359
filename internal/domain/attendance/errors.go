package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// Attendance domain errors
var (
	// Action gating
	ErrActionUnavailable = errors.New("action is not available right now")
	ErrActionInFlight    = errors.New("action is already in progress")
	ErrNotLoaded         = errors.New("attendance data has not been loaded yet")

	// Record invariants
	ErrInconsistentRecord = errors.New("attendance record has a check-out without a check-in")

	// Draft derivation
	ErrDatesRequired  = errors.New("start and end dates are required")
	ErrEndBeforeStart = errors.New("end date is before start date")
	ErrFormNotOpen    = errors.New("form is not open")

	// Device location
	ErrNoFix              = errors.New("device location is not available")
	ErrReportUnsupported  = errors.New("location provider does not accept reported fixes")
	ErrCoordinatesInvalid = errors.New("coordinates are out of range")

	// Server
	ErrRequestRejected = errors.New("request was rejected by the server")
)

// UnavailableError is returned when an action is invoked while its gate is
// closed. Reasons are the gate's reason codes.
type UnavailableError struct {
	Action  Action
	Reasons []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is not available: %s", e.Action, strings.Join(e.Reasons, ", "))
}

func (e *UnavailableError) Unwrap() error {
	return ErrActionUnavailable
}
