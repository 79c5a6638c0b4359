package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
)

type attendanceRepository struct {
	client *Client
	now    func() time.Time
}

func NewAttendanceRepository(client *Client) attendance.AttendanceRepository {
	return &attendanceRepository{client: client, now: time.Now}
}

func markPath(schoolID string) string {
	return "/schools/" + url.PathEscape(schoolID) + "/attendance/mark"
}

// GetToday implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetToday(ctx context.Context, schoolID string, userID string) (attendance.Today, error) {
	var today attendance.Today
	query := url.Values{"userId": []string{userID}}
	if err := r.client.do(ctx, http.MethodGet, markPath(schoolID), query, nil, &today, requestOptions{}); err != nil {
		return attendance.Today{}, err
	}
	if err := today.Attendance.Validate(); err != nil {
		return attendance.Today{}, err
	}
	today.FetchedAt = r.now()
	return today, nil
}

// Mark implements attendance.AttendanceRepository.
func (r *attendanceRepository) Mark(ctx context.Context, schoolID string, req attendance.MarkRequest) (attendance.MarkResponse, error) {
	var resp attendance.MarkResponse
	if err := r.client.do(ctx, http.MethodPost, markPath(schoolID), nil, req, &resp, requestOptions{}); err != nil {
		return attendance.MarkResponse{}, err
	}
	if !resp.Success {
		return resp, &APIError{StatusCode: http.StatusOK, Message: fallback(resp.Message, "Attendance could not be marked")}
	}
	return resp, nil
}

// SubmitLeave implements attendance.AttendanceRepository.
func (r *attendanceRepository) SubmitLeave(ctx context.Context, schoolID string, req attendance.LeaveRequest) (attendance.SubmitResponse, error) {
	path := "/schools/" + url.PathEscape(schoolID) + "/attendance/admin/leave-management"
	return r.submit(ctx, path, req, "Leave request could not be submitted")
}

// SubmitRegularization implements attendance.AttendanceRepository.
func (r *attendanceRepository) SubmitRegularization(ctx context.Context, schoolID string, req attendance.RegularizationRequest) (attendance.SubmitResponse, error) {
	path := "/schools/" + url.PathEscape(schoolID) + "/attendance/admin/regularization"
	return r.submit(ctx, path, req, "Regularization request could not be submitted")
}

func (r *attendanceRepository) submit(ctx context.Context, path string, body interface{}, failure string) (attendance.SubmitResponse, error) {
	// Older deployments answer with an empty body; absence of success means accepted.
	resp := attendance.SubmitResponse{Success: true}
	if err := r.client.do(ctx, http.MethodPut, path, nil, body, &resp, requestOptions{}); err != nil {
		return attendance.SubmitResponse{}, err
	}
	if !resp.Success {
		return resp, &APIError{StatusCode: http.StatusOK, Message: fallback(resp.Message, failure)}
	}
	return resp, nil
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
