package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
)

// SessionChecker confirms a stored token with the backend.
type SessionChecker interface {
	ValidateSession(ctx context.Context) (session.CurrentUser, error)
}

// Remounter restarts the attendance controller so it re-reads the session.
type Remounter interface {
	Remount() error
}

type SessionServiceImpl struct {
	session.SessionRepository
	checker    SessionChecker
	controller Remounter
}

func NewSessionService(sessions session.SessionRepository, checker SessionChecker, controller Remounter) session.SessionService {
	return &SessionServiceImpl{
		SessionRepository: sessions,
		checker:           checker,
		controller:        controller,
	}
}

// SignIn implements session.SessionService.
func (s *SessionServiceImpl) SignIn(ctx context.Context, req session.SignInRequest) (session.CurrentUser, error) {
	if err := req.Validate(); err != nil {
		return session.CurrentUser{}, err
	}

	// The checker reads the token from the store, so it is saved first.
	if err := s.SessionRepository.Save(ctx, session.Session{User: req.User, Token: req.Token}); err != nil {
		return session.CurrentUser{}, fmt.Errorf("failed to store session: %w", err)
	}

	remote, err := s.checker.ValidateSession(ctx)
	if err != nil {
		s.discard(ctx)
		return session.CurrentUser{}, fmt.Errorf("failed to validate session: %w", err)
	}

	user, err := mergeIdentity(req.User, remote)
	if err != nil {
		s.discard(ctx)
		return session.CurrentUser{}, err
	}

	if err := s.SessionRepository.Save(ctx, session.Session{User: user, Token: req.Token}); err != nil {
		return session.CurrentUser{}, fmt.Errorf("failed to store session: %w", err)
	}
	slog.Info("Signed in", "user_id", user.ID, "school_id", user.SchoolID)

	if err := s.controller.Remount(); err != nil {
		return user, fmt.Errorf("failed to restart attendance: %w", err)
	}
	return user, nil
}

// SignOut implements session.SessionService.
func (s *SessionServiceImpl) SignOut(ctx context.Context) error {
	if err := s.SessionRepository.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	slog.Info("Signed out")

	if err := s.controller.Remount(); err != nil {
		return fmt.Errorf("failed to restart attendance: %w", err)
	}
	return nil
}

// Current implements session.SessionService.
func (s *SessionServiceImpl) Current(ctx context.Context) (session.CurrentUser, error) {
	sess, err := s.SessionRepository.Load(ctx)
	if err != nil {
		return session.CurrentUser{}, err
	}
	return sess.User, nil
}

func (s *SessionServiceImpl) discard(ctx context.Context) {
	if err := s.SessionRepository.Clear(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		slog.Error("Failed to clear rejected session", "error", err)
	}
}

// mergeIdentity fills blank fields of local from the backend's view of the
// user. Identifiers that are present on both sides must agree.
func mergeIdentity(local, remote session.CurrentUser) (session.CurrentUser, error) {
	if local.ID != "" && remote.ID != "" && local.ID != remote.ID {
		return session.CurrentUser{}, session.ErrIdentityMismatch
	}
	if local.SchoolID != "" && remote.SchoolID != "" && local.SchoolID != remote.SchoolID {
		return session.CurrentUser{}, session.ErrIdentityMismatch
	}

	merged := local
	if merged.ID == "" {
		merged.ID = remote.ID
	}
	if merged.SchoolID == "" {
		merged.SchoolID = remote.SchoolID
	}
	if merged.Name == "" {
		merged.Name = remote.Name
	}
	if merged.Email == "" {
		merged.Email = remote.Email
	}
	if merged.Role == "" {
		merged.Role = remote.Role
	}
	return merged, nil
}
