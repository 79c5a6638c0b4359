package session

import "context"

// SessionRepository persists the signed-in session on the device.
type SessionRepository interface {
	// Load returns the stored session or ErrNoSession
	Load(ctx context.Context) (Session, error)

	// Save replaces the stored session
	Save(ctx context.Context, s Session) error

	// Clear removes the stored session (sign-out)
	Clear(ctx context.Context) error
}
