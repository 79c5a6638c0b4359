package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/validator"
)

// upstreamError is satisfied by rejections from the school backend.
type upstreamError interface {
	error
	UserMessage() string
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var unavailable *attendance.UnavailableError
	if errors.As(err, &unavailable) {
		Conflict(w, "ACTION_UNAVAILABLE", unavailable.Error(), map[string]string{
			"action":  string(unavailable.Action),
			"reasons": strings.Join(unavailable.Reasons, ","),
		})
		return
	}

	switch {
	// Session errors
	case errors.Is(err, session.ErrMissingIdentity):
		Unauthorized(w, err.Error())
	case errors.Is(err, session.ErrSignedOut), errors.Is(err, session.ErrNoSession):
		Unauthorized(w, "Signed out")
	case errors.Is(err, session.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, session.ErrIdentityMismatch):
		Forbidden(w, err.Error())

	// Attendance errors
	case errors.Is(err, attendance.ErrActionUnavailable):
		Conflict(w, "ACTION_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, attendance.ErrActionInFlight):
		Conflict(w, "ACTION_IN_FLIGHT", "Action is already in progress", nil)
	case errors.Is(err, attendance.ErrFormNotOpen):
		Conflict(w, "FORM_NOT_OPEN", "Form is not open", nil)
	case errors.Is(err, attendance.ErrNotLoaded):
		ServiceUnavailable(w, "NOT_LOADED", "Attendance is not loaded yet")
	case errors.Is(err, attendance.ErrInconsistentRecord):
		ServiceUnavailable(w, "INCONSISTENT_RECORD", err.Error())

	// Location errors
	case errors.Is(err, attendance.ErrNoFix):
		ServiceUnavailable(w, "LOCATION_UNAVAILABLE", err.Error())
	case errors.Is(err, attendance.ErrCoordinatesInvalid):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, attendance.ErrReportUnsupported):
		Conflict(w, "LOCATION_REPORT_UNSUPPORTED", err.Error(), nil)

	default:
		var upstream upstreamError
		if errors.As(err, &upstream) {
			BadGateway(w, upstream.UserMessage())
			return
		}
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
