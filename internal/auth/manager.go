package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
	"github.com/tapsdmc/fdsnclient/internal/provider/resilience"
)

// Predefined manager errors.
var (
	ErrInsecureEndpoint = errors.New("token endpoint is not https")
	ErrRedirect         = errors.New("token endpoint answered with a redirect")
	ErrNoCredentials    = errors.New("no username and password configured")
)

// Sender performs a single HTTP exchange.
type Sender interface {
	Send(ctx context.Context, req resilience.Request) fdsnws.Outcome
}

// Config holds configuration for the token manager.
type Config struct {
	// BaseURL is the datacenter base URL. Token endpoints live on its host
	// and are always reached over https.
	BaseURL string

	// Username and Password are used by Login.
	Username string
	Password string

	// Tokens seeds the manager with a previously issued token pair.
	Tokens Tokens

	// UserAgent is sent with every token request.
	UserAgent string

	Logger zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns the token pair of a client.
type Manager struct {
	baseURL   string
	username  string
	password  string
	userAgent string
	sender    Sender
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.Mutex
	tokens Tokens
}

// NewManager creates a token manager. No request is made.
func NewManager(cfg Config, sender Sender) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		baseURL:   cfg.BaseURL,
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
		sender:    sender,
		logger:    cfg.Logger.With().Str("component", "auth").Logger(),
		now:       now,
		tokens:    cfg.Tokens,
	}
}

// HasCredentials reports whether the manager can authenticate requests,
// either with a configured username and password or with held tokens.
func (m *Manager) HasCredentials() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (m.username != "" && m.password != "") || !m.tokens.Empty()
}

// Tokens returns a copy of the held token pair.
func (m *Manager) Tokens() Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Logout drops both tokens.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.tokens = Tokens{}
	m.mu.Unlock()
}

// Login acquires a token pair with the configured username and password.
func (m *Manager) Login(ctx context.Context) error {
	if m.username == "" || m.password == "" {
		return ErrNoCredentials
	}
	return m.Acquire(ctx, m.username, m.password)
}

// Acquire exchanges credentials for a token pair. On failure the held tokens
// are left untouched.
func (m *Manager) Acquire(ctx context.Context, username, password string) error {
	out, err := m.post(ctx, TokenPath, credentialsRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	if _, err := fdsnws.Classify(out); err != nil {
		m.logger.Debug().Err(err).Msg("token request rejected")
		return err
	}

	var tokens Tokens
	if err := json.Unmarshal(out.Body, &tokens); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tokens.Access == "" {
		return fdsnws.NewError(fdsnws.KindUnauthorized, "token response carries no access token")
	}

	m.mu.Lock()
	m.tokens = tokens
	m.mu.Unlock()

	m.logger.Debug().Bool("refresh_token", tokens.Refresh != "").Msg("token pair acquired")
	return nil
}

// Check reports the state of the held access token. Only StatusRejected and
// StatusValid involve a verification request; StatusUnreachable is returned
// together with the classified transport error.
func (m *Manager) Check(ctx context.Context) (Status, error) {
	access := m.Tokens().Access
	if access == "" {
		return StatusAbsent, nil
	}
	if Expired(access, m.now()) {
		return StatusExpired, nil
	}

	out, err := m.post(ctx, VerifyPath, verifyRequest{Token: access})
	if err != nil {
		return StatusUnreachable, err
	}
	if out.StatusCode == 0 {
		_, err := fdsnws.Classify(out)
		return StatusUnreachable, err
	}
	if out.StatusCode != http.StatusOK {
		m.logger.Debug().Int("status", out.StatusCode).Msg("access token rejected")
		return StatusRejected, nil
	}
	return StatusValid, nil
}

// IsValid reports whether the verification endpoint accepts the held access
// token. Every other outcome of Check is reported as false.
func (m *Manager) IsValid(ctx context.Context) bool {
	status, _ := m.Check(ctx)
	return status == StatusValid
}

// Refresh replaces the access token using the held refresh token. Any failure
// is reported as Unauthorized; the caller has to log in again.
func (m *Manager) Refresh(ctx context.Context) error {
	refresh := m.Tokens().Refresh
	if refresh == "" {
		return fdsnws.NewError(fdsnws.KindUnauthorized,
			"Unauthorized, no refresh token held. Log in again with username and password.")
	}

	out, err := m.post(ctx, RefreshPath, refreshRequest{Refresh: refresh})
	if err == nil {
		_, err = fdsnws.Classify(out)
	}
	var tokens Tokens
	if err == nil {
		err = json.Unmarshal(out.Body, &tokens)
	}
	if err == nil && tokens.Access == "" {
		err = errors.New("refresh response carries no access token")
	}
	if err != nil {
		m.logger.Debug().Err(err).Msg("token refresh failed")
		e := fdsnws.NewError(fdsnws.KindUnauthorized,
			"Unauthorized, refreshing the access token failed. Log in again with username and password.")
		e.Err = err
		return e
	}

	m.mu.Lock()
	m.tokens.Access = tokens.Access
	if tokens.Refresh != "" {
		m.tokens.Refresh = tokens.Refresh
	}
	m.mu.Unlock()

	m.logger.Debug().Msg("access token refreshed")
	return nil
}

// Authorize sets a bearer Authorization header on header. The access token is
// verified first and refreshed at most once when it is not accepted. If the
// refresh fails the header is left untouched and the error is returned.
// A manager holding no tokens but a username and password logs in first.
func (m *Manager) Authorize(ctx context.Context, header http.Header) error {
	if m.Tokens().Empty() && m.username != "" && m.password != "" {
		if err := m.Login(ctx); err != nil {
			return err
		}
		header.Set("Authorization", "Bearer "+m.Tokens().Access)
		return nil
	}

	status, err := m.Check(ctx)
	if status != StatusValid {
		m.logger.Debug().Err(err).Str("status", status.String()).Msg("access token not usable, refreshing")
		if err := m.Refresh(ctx); err != nil {
			return err
		}
	}
	header.Set("Authorization", "Bearer "+m.Tokens().Access)
	return nil
}

func (m *Manager) post(ctx context.Context, path string, payload any) (fdsnws.Outcome, error) {
	endpoint, err := m.endpoint(path)
	if err != nil {
		return fdsnws.Outcome{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fdsnws.Outcome{}, fmt.Errorf("encode token request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if m.userAgent != "" {
		header.Set("User-Agent", m.userAgent)
	}

	out := m.sender.Send(ctx, resilience.Request{URL: endpoint, Header: header, Body: body, NoRedirect: true})
	if err := checkAnswer(out); err != nil {
		m.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("token answer refused")
		return fdsnws.Outcome{}, err
	}
	return out, nil
}

// checkAnswer refuses redirects and answers that came from anything other
// than an https URL. Token endpoints are never followed elsewhere.
func checkAnswer(out fdsnws.Outcome) error {
	if out.StatusCode >= 300 && out.StatusCode < 400 {
		return fmt.Errorf("%w: status %d", ErrRedirect, out.StatusCode)
	}
	if out.URL == "" {
		return nil
	}
	final, err := url.Parse(out.URL)
	if err != nil || final.Scheme != "https" {
		return fmt.Errorf("%w: answer from %s", ErrInsecureEndpoint, out.URL)
	}
	return nil
}

// endpoint derives the https URL of a token endpoint. The result is parsed
// again and rejected unless its scheme is https, so no credential or token
// leaves over plain http.
func (m *Manager) endpoint(path string) (string, error) {
	base, err := url.Parse(m.baseURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("%w: %q", fdsnws.ErrInvalidBaseURL, m.baseURL)
	}
	derived := (&url.URL{Scheme: "https", Host: base.Host, Path: path}).String()

	check, err := url.Parse(derived)
	if err != nil || check.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrInsecureEndpoint, derived)
	}
	return derived, nil
}
