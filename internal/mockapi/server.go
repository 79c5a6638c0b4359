package mockapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// User is an account known to the mock backend.
type User struct {
	session.CurrentUser
	PasswordHash []byte
}

type Options struct {
	JWT      jwt.Service
	Clock    clockwork.Clock
	Schedule Schedule
	// Logger enables httplog request logging when set.
	Logger *slog.Logger
}

// Counts tallies requests per endpoint.
type Counts struct {
	Today          int
	Mark           int
	Leave          int
	Regularization int
}

// Server is an in-memory stand-in for the school backend. It implements the
// same four attendance calls the agent makes plus login and session check.
type Server struct {
	jwt      jwt.Service
	clock    clockwork.Clock
	schedule Schedule
	logger   *slog.Logger

	mu              sync.Mutex
	users           map[string]*User // by id
	emails          map[string]string
	records         map[string]*attendance.Record // by userID|date
	holidays        map[string]bool
	leaves          []attendance.LeaveRequest
	regularizations []attendance.RegularizationRequest
	counts          Counts
}

func NewServer(opts Options) (*Server, error) {
	if opts.JWT == nil {
		return nil, fmt.Errorf("jwt service is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if err := opts.Schedule.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		jwt:      opts.JWT,
		clock:    opts.Clock,
		schedule: opts.Schedule,
		logger:   opts.Logger,
		users:    make(map[string]*User),
		emails:   make(map[string]string),
		records:  make(map[string]*attendance.Record),
		holidays: make(map[string]bool),
	}, nil
}

// AddUser registers an account. The password is stored as a bcrypt hash.
func (s *Server) AddUser(user session.CurrentUser, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = &User{CurrentUser: user, PasswordHash: hash}
	if user.Email != "" {
		s.emails[strings.ToLower(user.Email)] = user.ID
	}
	return nil
}

// RemoveUser deletes an account; its tokens then answer 404 "User not found".
func (s *Server) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		delete(s.emails, strings.ToLower(u.Email))
		delete(s.users, id)
	}
}

// IssueToken signs an access token for a registered user.
func (s *Server) IssueToken(userID string) (string, error) {
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return "", ErrUserNotFound
	}
	token, _, err := s.jwt.GenerateAccessToken(u.ID, u.SchoolID, string(u.Role))
	return token, err
}

// SetHoliday marks date (YYYY-MM-DD) as a non-working day.
func (s *Server) SetHoliday(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[date] = true
}

// SetRecord replaces the record of userID for the record's date.
func (s *Server) SetRecord(userID string, rec attendance.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Date == "" {
		rec.Date = s.today()
	}
	s.records[recordKey(userID, rec.Date)] = &rec
}

// Record returns a copy of today's record of userID.
func (s *Server) Record(userID string) (attendance.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(userID, s.today())]
	if !ok {
		return attendance.Record{}, false
	}
	return *rec, true
}

func (s *Server) Leaves() []attendance.LeaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attendance.LeaveRequest(nil), s.leaves...)
}

func (s *Server) Regularizations() []attendance.RegularizationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attendance.RegularizationRequest(nil), s.regularizations...)
}

func (s *Server) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Router builds the HTTP surface of the mock backend.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	if s.logger != nil {
		r.Use(httplog.RequestLogger(s.logger, &httplog.Options{
			Level:  slog.LevelDebug,
			Schema: httplog.SchemaECS,
		}))
	}
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)

	r.Post("/auth/login", s.Login)

	// Requires authentication
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.jwt.JWTAuth()))
		r.Use(s.authRequired)

		r.Get("/auth/session", s.Session)

		r.Route("/schools/{schoolID}/attendance", func(r chi.Router) {
			r.Use(s.schoolScope)
			r.Get("/mark", s.GetToday)
			r.Post("/mark", s.Mark)
			r.Put("/admin/leave-management", s.SubmitLeave)
			r.Put("/admin/regularization", s.SubmitRegularization)
		})
	})
	return r
}

// NewLogger returns the JSON logger used for mock request logs.
func NewLogger(env string) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-mockapi"),
		slog.String("env", env),
	)
}

func (s *Server) today() string {
	return s.clock.Now().In(s.schedule.location()).Format("2006-01-02")
}

func recordKey(userID, date string) string {
	return userID + "|" + date
}

func dateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
