package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu      sync.Mutex
	sess    *session.Session
	cleared int
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
	m.cleared++
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *memorySessions, *[]error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token, _, err := jwt.NewJWTService("secret", time.Hour).GenerateAccessToken("u-1", "s-1", "TEACHER")
	require.NoError(t, err)

	sessions := &memorySessions{sess: &session.Session{
		User:  session.CurrentUser{ID: "u-1", SchoolID: "s-1"},
		Token: token,
	}}
	var signOuts []error
	client := NewClient(Options{
		BaseURL:   srv.URL,
		Timeout:   time.Second,
		Sessions:  sessions,
		OnSignOut: func(reason error) { signOuts = append(signOuts, reason) },
	})
	return client, sessions, &signOuts
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAttendanceRepository_GetTodayAttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID, gotPath, gotUser string
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		gotUser = r.URL.Query().Get("userId")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"attendance":   map[string]interface{}{"checkInTime": "2026-03-02T08:00:00Z", "status": "PRESENT", "liveWorkingHours": 0.5},
			"isWorkingDay": true,
			"dayType":      "WORKING",
			"windows": map[string]interface{}{
				"checkIn":  map[string]interface{}{"start": "2026-03-02T07:00:00Z", "end": "2026-03-02T10:00:00Z", "isOpen": false},
				"checkOut": map[string]interface{}{"start": "2026-03-02T13:00:00Z", "end": "2026-03-02T20:00:00Z", "isOpen": false, "minTime": "2026-03-02T12:00:00Z"},
			},
			"monthlyStats": map[string]interface{}{"presentDays": 12},
		})
	})

	today, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	require.NoError(t, err)

	assert.Regexp(t, `^Bearer .+`, gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "/schools/s-1/attendance/mark", gotPath)
	assert.Equal(t, "u-1", gotUser)

	require.NotNil(t, today.Attendance)
	assert.Equal(t, attendance.StatusPresent, today.Attendance.Status)
	assert.True(t, today.IsWorkingDay)
	require.NotNil(t, today.Windows.CheckOut.MinTime)
	assert.Equal(t, 12, today.MonthlyStats.PresentDays)
	assert.False(t, today.FetchedAt.IsZero())
}

func TestAttendanceRepository_InconsistentRecordIsRejected(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"attendance":   map[string]interface{}{"checkOutTime": "2026-03-02T15:00:00Z"},
			"isWorkingDay": true,
		})
	})

	_, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	assert.ErrorIs(t, err, attendance.ErrInconsistentRecord)
}

func TestClient_UnauthorizedSignsOut(t *testing.T) {
	client, sessions, signOuts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token revoked"})
	})

	_, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSignedOut)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "token revoked", apiErr.Message)

	assert.Equal(t, 1, sessions.cleared)
	assert.Len(t, *signOuts, 1)
}

func TestClient_UserNotFoundSignsOut(t *testing.T) {
	client, sessions, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{"message": "User not found"}})
	})

	_, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	assert.ErrorIs(t, err, session.ErrSignedOut)
	assert.Equal(t, 1, sessions.cleared)
}

func TestClient_OtherNotFoundKeepsSession(t *testing.T) {
	client, sessions, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "School not found"})
	})

	_, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrSignedOut)
	assert.Equal(t, 0, sessions.cleared)
}

func TestClient_SessionCheckNeverSignsOut(t *testing.T) {
	client, sessions, signOuts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/session", r.URL.Path)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
	})

	_, err := client.ValidateSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, sessions.cleared)
	assert.Empty(t, *signOuts)
}

func TestClient_NoSessionFailsWithoutRequest(t *testing.T) {
	called := false
	client, sessions, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	require.NoError(t, sessions.Clear(context.Background()))

	_, err := NewAttendanceRepository(client).GetToday(context.Background(), "s-1", "u-1")
	assert.ErrorIs(t, err, session.ErrSignedOut)
	assert.False(t, called)
}

func TestAttendanceRepository_MarkRejectedWithSuccessFalse(t *testing.T) {
	var body attendance.MarkRequest
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "Check-in window has closed"})
	})

	req := attendance.MarkRequest{UserID: "u-1", Type: attendance.MarkCheckIn, Location: attendance.Location{Latitude: 1, Longitude: 2, Accuracy: 3}}
	_, err := NewAttendanceRepository(client).Mark(context.Background(), "s-1", req)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Check-in window has closed", apiErr.UserMessage())
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, attendance.MarkCheckIn, body.Type)
}

func TestAttendanceRepository_SubmitLeave(t *testing.T) {
	var got attendance.LeaveRequest
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/schools/s-1/attendance/admin/leave-management", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	resp, err := NewAttendanceRepository(client).SubmitLeave(context.Background(), "s-1", attendance.LeaveRequest{
		UserID: "u-1", LeaveType: attendance.LeaveCasual, StartDate: "2026-03-05", EndDate: "2026-03-06", Reason: "Trip", TotalDays: 2,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, got.TotalDays)
}

func TestAttendanceRepository_ServerErrorIsTemporary(t *testing.T) {
	client, sessions, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	})

	_, err := NewAttendanceRepository(client).SubmitRegularization(context.Background(), "s-1", attendance.RegularizationRequest{UserID: "u-1"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "upstream timeout", apiErr.Message)
	assert.Equal(t, 0, sessions.cleared)
}
