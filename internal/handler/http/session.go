package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/handler/http/response"
)

type SessionHandler interface {
	Current(w http.ResponseWriter, r *http.Request)
	SignIn(w http.ResponseWriter, r *http.Request)
	SignOut(w http.ResponseWriter, r *http.Request)
}

type sessionHandlerImpl struct {
	sessionService session.SessionService
}

func NewSessionHandler(sessionService session.SessionService) SessionHandler {
	return &sessionHandlerImpl{
		sessionService: sessionService,
	}
}

// Current implements SessionHandler.
func (h *sessionHandlerImpl) Current(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessionService.Current(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, user)
}

// SignIn implements SessionHandler.
func (h *sessionHandlerImpl) SignIn(w http.ResponseWriter, r *http.Request) {
	var req session.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	user, err := h.sessionService.SignIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Signed in", user)
}

// SignOut implements SessionHandler.
func (h *sessionHandlerImpl) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.SignOut(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Signed out", nil)
}
