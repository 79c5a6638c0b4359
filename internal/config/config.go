package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Polling PollingConfig
	Tracker TrackerConfig
	Device  DeviceConfig
	Session SessionConfig
	MockAPI MockAPIConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// APIConfig points at the school backend
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollingConfig struct {
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
}

type TrackerConfig struct {
	TickInterval time.Duration
}

// DeviceConfig describes the device the agent runs on. A fixed coordinate is
// used by kiosk installs that have no GPS receiver.
type DeviceConfig struct {
	Model           string
	Platform        string
	OSVersion       string
	Latitude        *float64
	Longitude       *float64
	Accuracy        float64
	LocationTimeout time.Duration
}

type SessionConfig struct {
	StorePath string
	Key       []byte
}

type MockAPIConfig struct {
	Port          int
	JWTSecret     string
	GraceMinutes  int
	CheckInStart  string
	CheckInEnd    string
	CheckOutStart string
	CheckOutEnd   string
	MinHours      float64
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded, using process environment", "error", err)
	}

	config := &Config{}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8787"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS"),
	}

	// Backend API configuration
	apiTimeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}

	config.API = APIConfig{
		BaseURL: strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		Timeout: apiTimeout,
	}

	// Polling configuration
	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	retries, err := strconv.Atoi(getEnv("FETCH_RETRIES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_RETRIES: %w", err)
	}
	retryDelay, err := time.ParseDuration(getEnv("FETCH_RETRY_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_RETRY_DELAY: %w", err)
	}

	config.Polling = PollingConfig{
		Interval:   pollInterval,
		Retries:    retries,
		RetryDelay: retryDelay,
	}

	tick, err := time.ParseDuration(getEnv("TICK_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	config.Tracker = TrackerConfig{TickInterval: tick}

	// Device configuration
	latitude, err := getEnvFloatPtr("DEVICE_LATITUDE")
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_LATITUDE: %w", err)
	}
	longitude, err := getEnvFloatPtr("DEVICE_LONGITUDE")
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_LONGITUDE: %w", err)
	}
	accuracy, err := strconv.ParseFloat(getEnv("DEVICE_ACCURACY", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_ACCURACY: %w", err)
	}
	locationTimeout, err := time.ParseDuration(getEnv("LOCATION_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_TIMEOUT: %w", err)
	}

	hostname, _ := os.Hostname()
	config.Device = DeviceConfig{
		Model:           getEnv("DEVICE_MODEL", hostname),
		Platform:        getEnv("DEVICE_PLATFORM", "linux"),
		OSVersion:       getEnv("DEVICE_OS_VERSION", ""),
		Latitude:        latitude,
		Longitude:       longitude,
		Accuracy:        accuracy,
		LocationTimeout: locationTimeout,
	}

	// Session configuration
	sessionKey, err := decodeKey(getEnv("SESSION_KEY", ""))
	if err != nil {
		return nil, err
	}

	config.Session = SessionConfig{
		StorePath: getEnv("SESSION_STORE_PATH", defaultStorePath()),
		Key:       sessionKey,
	}

	// Mock API configuration
	mockPort, err := strconv.Atoi(getEnv("MOCK_API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_API_PORT: %w", err)
	}
	grace, err := strconv.Atoi(getEnv("MOCK_GRACE_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_GRACE_MINUTES: %w", err)
	}
	minHours, err := strconv.ParseFloat(getEnv("MOCK_MIN_WORKING_HOURS", "4"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_MIN_WORKING_HOURS: %w", err)
	}

	config.MockAPI = MockAPIConfig{
		Port:          mockPort,
		JWTSecret:     getEnv("MOCK_JWT_SECRET", "mock-secret"),
		GraceMinutes:  grace,
		CheckInStart:  getEnv("MOCK_CHECK_IN_START", "07:00"),
		CheckInEnd:    getEnv("MOCK_CHECK_IN_END", "10:00"),
		CheckOutStart: getEnv("MOCK_CHECK_OUT_START", "13:00"),
		CheckOutEnd:   getEnv("MOCK_CHECK_OUT_END", "20:00"),
		MinHours:      minHours,
	}

	return config, nil
}

// Validate checks the values the agent cannot run without
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if len(c.Session.Key) != 32 {
		return fmt.Errorf("SESSION_KEY is required")
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.Polling.Retries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative")
	}
	if c.Tracker.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if (c.Device.Latitude == nil) != (c.Device.Longitude == nil) {
		return fmt.Errorf("DEVICE_LATITUDE and DEVICE_LONGITUDE must be set together")
	}
	return nil
}

// LogLevel maps LOG_LEVEL onto slog levels
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// decodeKey accepts an empty value (validated later) or a base64 string that
// must decode to exactly 32 bytes.
func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("SESSION_KEY is not valid base64: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SESSION_KEY (decoded) must be exactly 32 bytes long, got %d", len(key))
	}
	return key, nil
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "attendance-agent", "session.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloatPtr(key string) (*float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string = strings.Split(value, ",")
	return result
}
