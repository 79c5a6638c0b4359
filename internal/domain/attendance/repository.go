package attendance

import (
	"context"
)

// AttendanceRepository is the school backend as seen by the client.
// Every call is scoped to a school; implementations surface server
// rejections with the server's own message.
type AttendanceRepository interface {
	// GetToday retrieves today's record, windows, config and monthly stats
	GetToday(ctx context.Context, schoolID string, userID string) (Today, error)

	// Mark submits a check-in or check-out
	Mark(ctx context.Context, schoolID string, req MarkRequest) (MarkResponse, error)

	// SubmitLeave files a leave request
	SubmitLeave(ctx context.Context, schoolID string, req LeaveRequest) (SubmitResponse, error)

	// SubmitRegularization files a correction for a past day
	SubmitRegularization(ctx context.Context, schoolID string, req RegularizationRequest) (SubmitResponse, error)
}
