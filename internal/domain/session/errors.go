package session

import "errors"

var (
	ErrNoSession       = errors.New("no session stored on this device")
	ErrMissingIdentity = errors.New("user or school could not be determined; cannot proceed")
	ErrSignedOut       = errors.New("signed out")
	ErrTokenExpired    = errors.New("access token expired")
)

var ErrIdentityMismatch = errors.New("session belongs to a different user")
