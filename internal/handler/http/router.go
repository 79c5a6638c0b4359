package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

type RouterConfig struct {
	AppName     string
	Version     string
	Env         string
	CORSOrigins []string
}

// NewRouter builds the local UI API the shell drives.
func NewRouter(cfg RouterConfig, attendanceHandler AttendanceHandler, sessionHandler SessionHandler, eventsHandler EventsHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", cfg.AppName),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
		// the event stream is long-lived
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/api/v1/events"
		},
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", attendanceHandler.State)
		r.Get("/events", eventsHandler.Stream)
		r.Post("/refresh", attendanceHandler.Refresh)
		r.Post("/lifecycle", attendanceHandler.Lifecycle)
		r.Post("/location", attendanceHandler.Location)

		r.Post("/check-in", attendanceHandler.CheckIn)
		r.Post("/check-out", attendanceHandler.CheckOut)

		r.Route("/leave-request", func(r chi.Router) {
			r.Post("/open", attendanceHandler.OpenLeave)
			r.Patch("/", attendanceHandler.UpdateLeave)
			r.Delete("/", attendanceHandler.DismissLeave)
			r.Post("/submit", attendanceHandler.SubmitLeave)
		})

		r.Route("/regularization", func(r chi.Router) {
			r.Post("/open", attendanceHandler.OpenRegularization)
			r.Patch("/", attendanceHandler.UpdateRegularization)
			r.Delete("/", attendanceHandler.DismissRegularization)
			r.Post("/submit", attendanceHandler.SubmitRegularization)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Current)
			r.Put("/", sessionHandler.SignIn)
			r.Delete("/", sessionHandler.SignOut)
		})
	})
	return r
}
