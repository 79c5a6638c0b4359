package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/handler/http/response"
)

type AttendanceHandler interface {
	State(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Lifecycle(w http.ResponseWriter, r *http.Request)
	Location(w http.ResponseWriter, r *http.Request)
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)

	OpenLeave(w http.ResponseWriter, r *http.Request)
	UpdateLeave(w http.ResponseWriter, r *http.Request)
	DismissLeave(w http.ResponseWriter, r *http.Request)
	SubmitLeave(w http.ResponseWriter, r *http.Request)

	OpenRegularization(w http.ResponseWriter, r *http.Request)
	UpdateRegularization(w http.ResponseWriter, r *http.Request)
	DismissRegularization(w http.ResponseWriter, r *http.Request)
	SubmitRegularization(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// ActionResult is returned by every action endpoint.
type ActionResult struct {
	Notice attendance.Notice `json:"notice"`
	State  attendance.State  `json:"state"`
}

// decodeJSON reads an optional JSON body. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// State implements AttendanceHandler.
func (h *attendanceHandlerImpl) State(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.attendanceService.State())
}

// Refresh implements AttendanceHandler.
func (h *attendanceHandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.attendanceService.Refresh(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, h.attendanceService.State())
}

// Lifecycle implements AttendanceHandler.
func (h *attendanceHandlerImpl) Lifecycle(w http.ResponseWriter, r *http.Request) {
	var req attendance.LifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	h.attendanceService.SetAppState(r.Context(), req.State)
	response.Success(w, h.attendanceService.State())
}

// Location implements AttendanceHandler.
func (h *attendanceHandlerImpl) Location(w http.ResponseWriter, r *http.Request) {
	var req attendance.LocationReport
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	var err error
	if req.Empty() {
		err = h.attendanceService.ResolveLocation(r.Context())
	} else if err = req.Validate(); err == nil {
		err = h.attendanceService.ReportLocation(r.Context(), req.Location())
	}
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, h.attendanceService.State())
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	notice, err := h.attendanceService.CheckIn(r.Context())
	h.writeAction(w, notice, err)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	notice, err := h.attendanceService.CheckOut(r.Context())
	h.writeAction(w, notice, err)
}

// OpenLeave implements AttendanceHandler.
func (h *attendanceHandlerImpl) OpenLeave(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.attendanceService.OpenLeaveForm())
}

// UpdateLeave implements AttendanceHandler.
func (h *attendanceHandlerImpl) UpdateLeave(w http.ResponseWriter, r *http.Request) {
	var patch attendance.LeavePatch
	if err := decodeJSON(r, &patch); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	form, err := h.attendanceService.UpdateLeaveForm(patch)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, form)
}

// DismissLeave implements AttendanceHandler.
func (h *attendanceHandlerImpl) DismissLeave(w http.ResponseWriter, r *http.Request) {
	h.attendanceService.DismissLeaveForm()
	response.SuccessWithMessage(w, "Leave form dismissed", nil)
}

// SubmitLeave implements AttendanceHandler.
func (h *attendanceHandlerImpl) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	notice, err := h.attendanceService.SubmitLeave(r.Context())
	h.writeAction(w, notice, err)
}

// OpenRegularization implements AttendanceHandler.
func (h *attendanceHandlerImpl) OpenRegularization(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.attendanceService.OpenRegularizationForm())
}

// UpdateRegularization implements AttendanceHandler.
func (h *attendanceHandlerImpl) UpdateRegularization(w http.ResponseWriter, r *http.Request) {
	var patch attendance.RegularizationPatch
	if err := decodeJSON(r, &patch); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	form, err := h.attendanceService.UpdateRegularizationForm(patch)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, form)
}

// DismissRegularization implements AttendanceHandler.
func (h *attendanceHandlerImpl) DismissRegularization(w http.ResponseWriter, r *http.Request) {
	h.attendanceService.DismissRegularizationForm()
	response.SuccessWithMessage(w, "Regularization form dismissed", nil)
}

// SubmitRegularization implements AttendanceHandler.
func (h *attendanceHandlerImpl) SubmitRegularization(w http.ResponseWriter, r *http.Request) {
	notice, err := h.attendanceService.SubmitRegularization(r.Context())
	h.writeAction(w, notice, err)
}

func (h *attendanceHandlerImpl) writeAction(w http.ResponseWriter, notice attendance.Notice, err error) {
	if err != nil {
		slog.Debug("Action rejected", "action", notice.Action, "error", err)
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, notice.Message, ActionResult{
		Notice: notice,
		State:  h.attendanceService.State(),
	})
}
