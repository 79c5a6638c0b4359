package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/config"
	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
	appHTTP "github.com/cmlabs-hris/attendance-agent/internal/handler/http"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-agent/internal/repository/rest"
	"github.com/cmlabs-hris/attendance-agent/internal/repository/securestore"
	attendanceService "github.com/cmlabs-hris/attendance-agent/internal/service/attendance"
	"github.com/cmlabs-hris/attendance-agent/internal/service/location"
	sessionService "github.com/cmlabs-hris/attendance-agent/internal/service/session"
)

const (
	appName    = "attendance-agent"
	appVersion = "v1.0.0"
	eventTopic = "attendance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})).With(
		slog.String("app", appName),
		slog.String("version", appVersion),
		slog.String("env", cfg.App.Env),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := securestore.Open(cfg.Session.StorePath, cfg.Session.Key)
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}
	installID, err := store.InstallID()
	if err != nil {
		slog.Error("Failed to read install id", "error", err)
		os.Exit(1)
	}
	sessions := securestore.NewSessionRepository(store)

	var fix *attendance.Location
	if cfg.Device.Latitude != nil && cfg.Device.Longitude != nil {
		fix = &attendance.Location{Latitude: *cfg.Device.Latitude, Longitude: *cfg.Device.Longitude, Accuracy: cfg.Device.Accuracy}
	}
	resolver := location.NewResolver(location.Options{
		Provider: location.NewDeviceProvider(fix),
		Device: attendance.DeviceInfo{
			Model:     cfg.Device.Model,
			Platform:  cfg.Device.Platform,
			OSVersion: cfg.Device.OSVersion,
			InstallID: installID,
		},
		Timeout: cfg.Device.LocationTimeout,
	})

	hub := sse.NewHub()
	var controller *attendanceService.AttendanceServiceImpl
	client := rest.NewClient(rest.Options{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		Sessions: sessions,
		OnSignOut: func(reason error) {
			controller.HandleSignOut(reason)
		},
	})
	controller = attendanceService.NewAttendanceService(attendanceService.Options{
		Repo:         rest.NewAttendanceRepository(client),
		Sessions:     sessions,
		Location:     resolver,
		Hub:          hub,
		Topic:        eventTopic,
		PollInterval: cfg.Polling.Interval,
		TickInterval: cfg.Tracker.TickInterval,
		Retries:      cfg.Polling.Retries,
		RetryDelay:   cfg.Polling.RetryDelay,
	})
	if err := controller.Mount(ctx); err != nil {
		slog.Error("Failed to start attendance controller", "error", err)
		os.Exit(1)
	}
	defer controller.Unmount()

	sessionSvc := sessionService.NewSessionService(sessions, client, controller)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			AppName:     appName,
			Version:     appVersion,
			Env:         cfg.App.Env,
			CORSOrigins: cfg.App.CORSOrigins,
		},
		appHTTP.NewAttendanceHandler(controller),
		appHTTP.NewSessionHandler(sessionSvc),
		appHTTP.NewEventsHandler(hub, eventTopic, controller, 30*time.Second),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Attendance agent running", "addr", "http://"+server.Addr, "backend", cfg.API.BaseURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
	}
}
