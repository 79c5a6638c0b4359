package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/session"
	"github.com/cmlabs-hris/attendance-agent/internal/pkg/jwt"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx (or success=false) answer from the backend. Message
// is the server's human-readable text and is shown to the user verbatim.
type APIError struct {
	StatusCode int
	Message    string
	SignedOut  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%d]: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers test errors.Is(err, session.ErrSignedOut).
func (e *APIError) Unwrap() error {
	if e.SignedOut {
		return session.ErrSignedOut
	}
	return nil
}

// UserMessage is the text to show the user.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Sessions  session.SessionRepository
	OnSignOut func(reason error)
	// Base is the underlying transport; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// Client talks to the school backend. It attaches the bearer token from the
// stored session and signs the user out on 401 or "user not found" 404.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   session.SessionRepository
	onSignOut  func(reason error)
}

func NewClient(opts Options) *Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: &sessionTokenSource{sessions: opts.Sessions},
				Base:   base,
			},
		},
		sessions:  opts.Sessions,
		onSignOut: opts.OnSignOut,
	}
}

// sessionTokenSource feeds oauth2.Transport from the persisted session.
type sessionTokenSource struct {
	sessions session.SessionRepository
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	sess, err := s.sessions.Load(context.Background())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, session.ErrSignedOut
		}
		return nil, err
	}
	if sess.Token == "" {
		return nil, session.ErrSignedOut
	}

	token := &oauth2.Token{AccessToken: sess.Token, TokenType: "Bearer"}
	if claims, err := jwt.Inspect(sess.Token); err == nil {
		if claims.Expired(time.Now()) {
			return nil, session.ErrTokenExpired
		}
		token.Expiry = claims.ExpiresAt
	}
	return token, nil
}

type requestOptions struct {
	// sessionCheck disables automatic sign-out for the validity probe itself
	sessionCheck bool
}

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// do executes one round trip. It never retries.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, opts requestOptions) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, err := uuid.NewV7(); err == nil {
		req.Header.Set("X-Request-ID", id.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) && !opts.sessionCheck {
			c.signOut(ctx, session.ErrTokenExpired)
			return fmt.Errorf("%s %s: %w", method, path, session.ErrSignedOut)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
		if !opts.sessionCheck && shouldSignOut(apiErr) {
			apiErr.SignedOut = true
			c.signOut(ctx, apiErr)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func shouldSignOut(e *APIError) bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Message), "user not found")
}

func (c *Client) signOut(ctx context.Context, reason error) {
	slog.Warn("Signing out after backend rejected the session", "reason", reason)
	if c.sessions != nil {
		if err := c.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Failed to clear session", "error", err)
		}
	}
	if c.onSignOut != nil {
		c.onSignOut(reason)
	}
}

// errorMessage extracts the server's message from the known error shapes:
// {"error":"..."}, {"error":{"message":"..."}} and {"message":"..."}.
func errorMessage(status int, data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if len(body.Error) > 0 {
			var s string
			if json.Unmarshal(body.Error, &s) == nil && s != "" {
				return s
			}
			var detail struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body.Error, &detail) == nil && detail.Message != "" {
				return detail.Message
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}

// ValidateSession probes the backend for session validity. A rejection here
// is reported to the caller and never triggers automatic sign-out.
func (c *Client) ValidateSession(ctx context.Context) (session.CurrentUser, error) {
	var user session.CurrentUser
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, nil, &user, requestOptions{sessionCheck: true}); err != nil {
		return session.CurrentUser{}, err
	}
	return user, nil
}
