package session

import "context"

type SessionService interface {
	// SignIn stores the session, confirms it with the backend and remounts the controller
	SignIn(ctx context.Context, req SignInRequest) (CurrentUser, error)

	// SignOut clears the stored session and remounts into the blocked state
	SignOut(ctx context.Context) error

	// Current returns the stored user or ErrNoSession
	Current(ctx context.Context) (CurrentUser, error)
}
