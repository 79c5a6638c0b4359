package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey struct{}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "email is required",
		})
	}
	if validator.IsEmpty(r.Password) {
		errs = append(errs, validator.ValidationError{
			Field:   "password",
			Message: "password is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type LoginResponse struct {
	AccessToken string              `json:"accessToken"`
	ExpiresAt   int64               `json:"expiresAt"`
	User        session.CurrentUser `json:"user"`
}

// Login exchanges email and password for an access token.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	s.mu.Lock()
	var user *User
	if id, ok := s.emails[strings.ToLower(strings.TrimSpace(req.Email))]; ok {
		user = s.users[id]
	}
	s.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		response.Unauthorized(w, ErrInvalidCredentials.Error())
		return
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(user.ID, user.SchoolID, string(user.Role))
	if err != nil {
		response.InternalServerError(w, "Failed to issue token")
		return
	}

	response.Success(w, LoginResponse{AccessToken: token, ExpiresAt: expiresAt, User: user.CurrentUser})
}

// Session answers the validity probe with the token's user.
func (s *Server) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

// authRequired rejects requests without a valid access token and resolves
// the token's user.
func (s *Server) authRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}
		if token == nil {
			response.Unauthorized(w, ErrInvalidToken.Error())
			return
		}

		tokenType, ok := claims["type"].(string)
		if !ok || tokenType != "access" {
			response.Unauthorized(w, ErrInvalidToken.Error())
			return
		}

		userID, _ := claims["user_id"].(string)
		s.mu.Lock()
		user, found := s.users[userID]
		s.mu.Unlock()
		if !found {
			response.NotFound(w, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, user.CurrentUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// schoolScope requires the {schoolID} path segment to be the user's school.
func (s *Server) schoolScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if chi.URLParam(r, "schoolID") != user.SchoolID {
			response.Forbidden(w, ErrSchoolMismatch.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) session.CurrentUser {
	user, _ := ctx.Value(contextKey{}).(session.CurrentUser)
	return user
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
