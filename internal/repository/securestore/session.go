package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
)

const (
	keyCurrentUser = "current_user"
	keyAccessToken = "access_token"
)

type sessionRepository struct {
	store *Store
}

func NewSessionRepository(store *Store) session.SessionRepository {
	return &sessionRepository{store: store}
}

// Load implements session.SessionRepository. Identifiers missing from the
// stored user object are filled from the token claims when possible.
func (r *sessionRepository) Load(ctx context.Context) (session.Session, error) {
	raw, err := r.store.Get(keyCurrentUser)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return session.Session{}, session.ErrNoSession
		}
		return session.Session{}, fmt.Errorf("failed to read current user: %w", err)
	}

	var user session.CurrentUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode current user: %w", err)
	}

	s := session.Session{User: user}

	token, err := r.store.Get(keyAccessToken)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return session.Session{}, fmt.Errorf("failed to read access token: %w", err)
	}
	s.Token = string(token)

	if s.Token != "" && !user.HasIdentity() {
		if claims, err := jwt.Inspect(s.Token); err == nil {
			if s.User.ID == "" {
				s.User.ID = claims.UserID
			}
			if s.User.SchoolID == "" {
				s.User.SchoolID = claims.SchoolID
			}
		}
	}

	return s, nil
}

// Save implements session.SessionRepository.
func (r *sessionRepository) Save(ctx context.Context, s session.Session) error {
	raw, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("failed to encode current user: %w", err)
	}
	if err := r.store.Set(keyCurrentUser, raw); err != nil {
		return err
	}
	if s.Token == "" {
		return r.store.Delete(keyAccessToken)
	}
	return r.store.Set(keyAccessToken, []byte(s.Token))
}

// Clear implements session.SessionRepository.
func (r *sessionRepository) Clear(ctx context.Context) error {
	return r.store.Delete(keyCurrentUser, keyAccessToken)
}
