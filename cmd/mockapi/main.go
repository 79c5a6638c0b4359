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
	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/mockapi"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := mockapi.NewLogger(cfg.App.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedule := mockapi.Schedule{
		CheckInStart:    cfg.MockAPI.CheckInStart,
		CheckInEnd:      cfg.MockAPI.CheckInEnd,
		CheckOutStart:   cfg.MockAPI.CheckOutStart,
		CheckOutEnd:     cfg.MockAPI.CheckOutEnd,
		GraceMinutes:    cfg.MockAPI.GraceMinutes,
		MinWorkingHours: cfg.MockAPI.MinHours,
		SchoolLatitude:  cfg.Device.Latitude,
		SchoolLongitude: cfg.Device.Longitude,
		AllowedRadius:   200,
	}

	backend, err := mockapi.NewServer(mockapi.Options{
		JWT:      jwt.NewJWTService(cfg.MockAPI.JWTSecret, 12*time.Hour),
		Schedule: schedule,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("Invalid mock configuration", "error", err)
		os.Exit(1)
	}

	// Demo account
	demo := session.CurrentUser{ID: "teacher-1", SchoolID: "school-1", Name: "Demo Teacher", Email: "teacher@school.test", Role: session.RoleTeacher}
	if err := backend.AddUser(demo, "password123"); err != nil {
		slog.Error("Failed to seed demo user", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MockAPI.Port),
		Handler:           backend.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Mock school backend running", "addr", server.Addr, "demo_email", demo.Email)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
	}
}
