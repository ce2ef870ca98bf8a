package resilience

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrInsecureRedirect is returned when an https request is redirected to
	// a non-https URL.
	ErrInsecureRedirect = errors.New("redirect from https to a non-https URL refused")

	errHeaderTimeout = fmt.Errorf("%w: timeout awaiting response headers", context.DeadlineExceeded)
)

const maxRedirects = 10

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the transport.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout bounds the wait for the response headers of a single request.
	// The default HTTP client enforces it in its transport; for an injected
	// HTTPClient the request is cancelled when no headers arrived in time.
	// Default: 120 seconds
	Timeout time.Duration

	// HTTPClient executes requests. If nil, a client honoring Timeout is
	// created. Redirects of an *http.Client are checked with
	// RefuseInsecureRedirect; other doers follow their own redirect policy.
	HTTPClient HTTPDoer

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Logger receives debug output for every exchange.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the transport defaults.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        120 * time.Second,
		CircuitBreaker: &cbConfig,
		Logger:         zerolog.Nop(),
	}
}

// Request is a single HTTP exchange. It is sent as a GET when Body is nil
// and as a POST otherwise.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte

	// Gzip asks the server for a gzip encoded response, which is decoded
	// before it is returned.
	Gzip bool

	// NoRedirect returns a redirect answer as is instead of following it.
	NoRedirect bool
}

// Client sends requests to a datacenter. HTTP error statuses are reported in
// the outcome, never as errors.
type Client struct {
	httpClient     HTTPDoer
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	logger         zerolog.Logger

	// headerTimeout is enforced per request when the doer was injected.
	headerTimeout time.Duration
}

// NewClient creates a new transport client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	httpClient := cfg.HTTPClient
	var headerTimeout time.Duration
	if httpClient != nil {
		headerTimeout = cfg.Timeout
	} else {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
				TLSHandshakeTimeout:   cfg.Timeout,
				// Compression is negotiated explicitly per request.
				DisableCompression: true,
			},
			CheckRedirect: RefuseInsecureRedirect,
		}
	}

	return &Client{
		httpClient:     httpClient,
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig, cfg.Logger), //nolint:bodyclose // type param, not response
		logger:         cfg.Logger,
		headerTimeout:  headerTimeout,
	}
}

// Send performs the exchange described by req.
func (c *Client) Send(ctx context.Context, req Request) fdsnws.Outcome {
	method := http.MethodGet
	var body io.Reader = http.NoBody
	if req.Body != nil {
		method = http.MethodPost
		body = bytes.NewReader(req.Body)
	}

	log := c.logger.With().
		Str("method", method).
		Str("url", req.URL).
		Logger()

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stopTimer := func() {}
	if c.headerTimeout > 0 {
		timer := time.AfterFunc(c.headerTimeout, func() { cancel(errHeaderTimeout) })
		stopTimer = func() { timer.Stop() }
	}
	defer stopTimer()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, req.URL, body)
	if err != nil {
		return failure(fmt.Errorf("create request: %w", err))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Gzip {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}
	if httpReq.Header.Get("X-Request-Id") == "" {
		httpReq.Header.Set("X-Request-Id", "req_"+uuid.New().String()[:22])
	}

	ev := log.Debug().
		Str("request_id", httpReq.Header.Get("X-Request-Id")).
		Bool("gzip", req.Gzip)
	if req.Body != nil {
		ev = ev.Int("payload_bytes", len(req.Body))
	}
	ev.Msg("sending request")

	start := time.Now()
	resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed below
		r, err := c.doer(req).Do(httpReq)
		stopTimer()
		if err != nil {
			if errors.Is(context.Cause(reqCtx), errHeaderTimeout) {
				return nil, errHeaderTimeout
			}
			return nil, err
		}
		// 5xx responses count as failures for the breaker.
		if r.StatusCode >= 500 {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if err != nil {
		var serverErr *ServerError
		switch {
		case errors.As(err, &serverErr) && resp != nil:
			// Still an HTTP answer; handled like any other status below.
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			log.Debug().Err(err).Msg("request rejected by circuit breaker")
			return failure(ErrCircuitOpen)
		default:
			log.Debug().Err(err).Dur("duration", time.Since(start)).Msg("request failed")
			return failure(err)
		}
	}
	defer resp.Body.Close()

	payload, err := readBody(resp)
	if err != nil {
		log.Debug().Err(err).Int("status", resp.StatusCode).Msg("reading response failed")
		return failure(fmt.Errorf("read response: %w", err))
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(payload)).
		Str("content_encoding", resp.Header.Get("Content-Encoding")).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	out := fdsnws.Outcome{StatusCode: resp.StatusCode, Body: payload}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}
	return out
}

// doer returns the doer for req. An *http.Client is shallow-copied so its
// redirect policy can be tightened for this request without touching the
// caller's client.
func (c *Client) doer(req Request) HTTPDoer {
	hc, ok := c.httpClient.(*http.Client)
	if !ok {
		return c.httpClient
	}
	cp := *hc
	if req.NoRedirect {
		cp.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return &cp
	}
	next := hc.CheckRedirect
	cp.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if err := RefuseInsecureRedirect(r, via); err != nil {
			return err
		}
		if next != nil {
			return next(r, via)
		}
		return nil
	}
	return &cp
}

// RefuseInsecureRedirect is an http.Client CheckRedirect policy. It stops
// after ten hops and refuses any hop to a non-https URL once the chain has
// been on https.
func RefuseInsecureRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme == "https" {
		return nil
	}
	for _, prev := range via {
		if prev.URL.Scheme == "https" {
			return fmt.Errorf("%w: %s", ErrInsecureRedirect, req.URL.Redacted())
		}
	}
	return nil
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func failure(err error) fdsnws.Outcome {
	return fdsnws.Outcome{
		Body:          []byte(err.Error()),
		ServerMessage: err.Error(),
		Err:           err,
	}
}
