package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
)

var (
	testUser = session.CurrentUser{ID: "u-1", SchoolID: "s-1", Name: "Asha", Role: session.RoleTeacher}
	testNow  = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// workingDay is a weekday with the check-in window open and check-out still upcoming.
func workingDay() attendance.Today {
	return attendance.Today{
		IsWorkingDay: true,
		DayType:      "WORKING",
		Windows: attendance.Windows{
			CheckIn:  attendance.Window{Start: at(7, 0), End: at(10, 0), IsOpen: true},
			CheckOut: attendance.Window{Start: at(13, 0), End: at(20, 0), IsOpen: false},
		},
	}
}

func checkedIn(checkIn time.Time) attendance.Today {
	t := workingDay()
	t.Attendance = &attendance.Record{
		Date:        "2026-03-02",
		CheckInTime: ptr(checkIn),
		Status:      attendance.StatusPresent,
	}
	return t
}

func checkedOut(checkIn, checkOut time.Time, hours *float64) attendance.Today {
	t := checkedIn(checkIn)
	t.Attendance.CheckOutTime = ptr(checkOut)
	t.Attendance.WorkingHours = hours
	return t
}

// rejection mimics a backend error answer.
type rejection struct {
	status  int
	message string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("api error [%d]: %s", r.status, r.message)
}

func (r *rejection) Temporary() bool {
	return r.status >= 500
}

func (r *rejection) UserMessage() string {
	return r.message
}

type fakeRepo struct {
	mu             sync.Mutex
	getToday       func(ctx context.Context) (attendance.Today, error)
	mark           func(ctx context.Context, req attendance.MarkRequest) (attendance.MarkResponse, error)
	leave          func(ctx context.Context, req attendance.LeaveRequest) (attendance.SubmitResponse, error)
	regularization func(ctx context.Context, req attendance.RegularizationRequest) (attendance.SubmitResponse, error)

	getCalls, markCalls, leaveCalls, regularizationCalls int
	lastMark                                              attendance.MarkRequest
	lastLeave                                             attendance.LeaveRequest
}

func (f *fakeRepo) GetToday(ctx context.Context, schoolID, userID string) (attendance.Today, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getToday
	f.mu.Unlock()
	if fn == nil {
		return workingDay(), nil
	}
	return fn(ctx)
}

func (f *fakeRepo) Mark(ctx context.Context, schoolID string, req attendance.MarkRequest) (attendance.MarkResponse, error) {
	f.mu.Lock()
	f.markCalls++
	f.lastMark = req
	fn := f.mark
	f.mu.Unlock()
	if fn == nil {
		return attendance.MarkResponse{Success: true, Message: "ok"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeRepo) SubmitLeave(ctx context.Context, schoolID string, req attendance.LeaveRequest) (attendance.SubmitResponse, error) {
	f.mu.Lock()
	f.leaveCalls++
	f.lastLeave = req
	fn := f.leave
	f.mu.Unlock()
	if fn == nil {
		return attendance.SubmitResponse{Success: true, Message: "Leave request submitted"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeRepo) SubmitRegularization(ctx context.Context, schoolID string, req attendance.RegularizationRequest) (attendance.SubmitResponse, error) {
	f.mu.Lock()
	f.regularizationCalls++
	fn := f.regularization
	f.mu.Unlock()
	if fn == nil {
		return attendance.SubmitResponse{Success: true, Message: "Regularization request submitted"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeRepo) calls() (get, mark, leave, regularization int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.markCalls, f.leaveCalls, f.regularizationCalls
}

func (f *fakeRepo) setToday(today attendance.Today) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getToday = func(context.Context) (attendance.Today, error) { return today, nil }
}

type fakeLocator struct {
	mu  sync.Mutex
	ctx *attendance.DeviceContext
}

func resolvedLocator() *fakeLocator {
	return &fakeLocator{ctx: &attendance.DeviceContext{
		Location:   attendance.Location{Latitude: 12.97, Longitude: 77.59, Accuracy: 8},
		DeviceInfo: attendance.DeviceInfo{Model: "Pixel 7", Platform: "android", OSVersion: "14"},
	}}
}

func (l *fakeLocator) DeviceContext() (attendance.DeviceContext, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return attendance.DeviceContext{}, false
	}
	return *l.ctx, true
}

type memorySessions struct {
	mu   sync.Mutex
	sess *session.Session
}

func (m *memorySessions) Load(ctx context.Context) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return session.Session{}, session.ErrNoSession
	}
	return *m.sess, nil
}

func (m *memorySessions) Save(ctx context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &s
	return nil
}

func (m *memorySessions) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
