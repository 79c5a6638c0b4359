package session

import "github.com/cmlabs-hris/attendance-agent/internal/pkg/validator"

// SignInRequest is pushed by the shell after it authenticated the user.
// User may be partial; missing identifiers are taken from the backend.
type SignInRequest struct {
	Token string      `json:"token"`
	User  CurrentUser `json:"user"`
}

func (r *SignInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Token) {
		errs = append(errs, validator.ValidationError{
			Field:   "token",
			Message: "token is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
