// Package client is an FDSN web service client for the station and
// dataselect services of a datacenter.
//
// A Client validates and canonicalizes query parameters before anything is
// sent, routes waveform requests through the authenticated queryauth resource
// when it holds credentials, and maps every non-success answer onto a typed
// *fdsnws.Error. Response payloads are not parsed; they are written to an
// Output or handed to the configured readers.
package client

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tapsdmc/fdsnclient/internal/auth"
	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
	"github.com/tapsdmc/fdsnclient/internal/provider/resilience"
	"github.com/tapsdmc/fdsnclient/internal/telemetry"
)

const tracerName = "github.com/tapsdmc/fdsnclient/internal/client"

// Version is the client version reported in the default user agent. Set at
// compile time via ldflags.
var Version = "dev"

// Defaults.
const (
	DefaultBaseURL = "TAPS"
	DefaultTimeout = 120 * time.Second
)

// DefaultMajorVersions are the major versions of the TAPS deployment.
var DefaultMajorVersions = map[string]int{
	fdsnws.ServiceDataselect: 0,
	fdsnws.ServiceStation:    0,
}

// DefaultUserAgent returns the user agent sent when none is configured.
func DefaultUserAgent() string {
	return fmt.Sprintf("TAPSClient/%s (%s-%s, Go %s)",
		Version, runtime.GOOS, runtime.GOARCH, strings.TrimPrefix(runtime.Version(), "go"))
}

// Config holds the construction parameters of a Client.
type Config struct {
	// BaseURL is the datacenter URL or a known shortcut such as "TAPS".
	BaseURL string

	// MajorVersions overrides the major version used per service.
	MajorVersions map[string]int

	// Username and Password are exchanged for tokens by Login.
	Username string
	Password string

	// AccessToken and RefreshToken seed the client with issued tokens.
	AccessToken  string
	RefreshToken string

	UserAgent string

	// Debug lowers the logger to debug level.
	Debug bool

	// Timeout bounds the wait for the response headers of a request, also
	// when the HTTP client is injected with WithHTTPClient. Reading the body
	// is bounded only by the context.
	Timeout time.Duration

	// ServiceMappings replaces the full service URL (without resource) of
	// individual services.
	ServiceMappings map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client requests are executed with.
func WithHTTPClient(doer resilience.HTTPDoer) Option {
	return func(c *Client) { c.httpClient = doer }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithInventoryReader sets the reader for station responses.
func WithInventoryReader(r InventoryReader) Option {
	return func(c *Client) { c.inventory = r }
}

// WithWaveformReader sets the reader for dataselect responses.
func WithWaveformReader(r WaveformReader) Option {
	return func(c *Client) { c.waveforms = r }
}

// WithResponseAttacher sets how instrument responses are attached to
// waveforms.
func WithResponseAttacher(a ResponseAttacher) Option {
	return func(c *Client) { c.attacher = a }
}

// WithMetrics records request metrics.
func WithMetrics(m *telemetry.ClientMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client talks to one FDSN datacenter. It is safe for concurrent use.
type Client struct {
	baseURL       string
	subpath       string
	majorVersions map[string]int
	mappings      map[string]string
	userAgent     string

	schema    *fdsnws.Schema
	transport *resilience.Client
	auth      *auth.Manager

	httpClient resilience.HTTPDoer
	logger     zerolog.Logger
	tracer     trace.Tracer
	metrics    *telemetry.ClientMetrics
	inventory  InventoryReader
	waveforms  WaveformReader
	attacher   ResponseAttacher

	mu       sync.Mutex
	versions map[string]fdsnws.Version
}

// New creates a client. The base URL is resolved and validated; no request is
// made.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := fdsnws.ResolveBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	for service := range cfg.MajorVersions {
		if !fdsnws.IsService(service) {
			return nil, fmt.Errorf("major version given for unknown service %q", service)
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent()
	}

	c := &Client{
		baseURL:       baseURL,
		subpath:       fdsnws.DefaultSubpath,
		majorVersions: make(map[string]int, len(DefaultMajorVersions)),
		mappings:      make(map[string]string, len(cfg.ServiceMappings)),
		userAgent:     cfg.UserAgent,
		schema:        fdsnws.DefaultSchema(),
		logger:        zerolog.Nop(),
		tracer:        otel.Tracer(tracerName),
		inventory:     rawReader{},
		waveforms:     rawReader{},
		attacher:      pairAttacher{},
		versions:      make(map[string]fdsnws.Version),
	}
	for service, major := range DefaultMajorVersions {
		c.majorVersions[service] = major
	}
	for service, major := range cfg.MajorVersions {
		c.majorVersions[service] = major
	}
	for service, url := range cfg.ServiceMappings {
		c.mappings[service] = url
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Debug {
		c.logger = c.logger.Level(zerolog.DebugLevel)
	}

	tcfg := resilience.DefaultClientConfig("fdsn:" + baseURL)
	tcfg.Timeout = cfg.Timeout
	tcfg.HTTPClient = c.httpClient
	tcfg.Logger = c.logger
	c.transport = resilience.NewClient(tcfg)

	c.auth = auth.NewManager(auth.Config{
		BaseURL:   baseURL,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Tokens:    auth.Tokens{Access: cfg.AccessToken, Refresh: cfg.RefreshToken},
		UserAgent: cfg.UserAgent,
		Logger:    c.logger,
	}, c.transport)

	c.logger.Debug().
		Str("base_url", c.baseURL).
		Interface("service_mappings", c.mappings).
		Str("user_agent", c.userAgent).
		Msg("client created")

	return c, nil
}

// BaseURL returns the resolved datacenter URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges the configured username and password for a token pair.
func (c *Client) Login(ctx context.Context) error {
	return c.auth.Login(ctx)
}

// Tokens returns the held token pair.
func (c *Client) Tokens() auth.Tokens {
	return c.auth.Tokens()
}

// Logout drops the held tokens.
func (c *Client) Logout() {
	c.auth.Logout()
}

// Authenticated reports whether waveform requests use the authenticated
// route.
func (c *Client) Authenticated() bool {
	return c.auth.HasCredentials()
}

// Stations fetches station metadata. With q.Output set the response is
// written there and nil is returned; otherwise the result of the inventory
// reader is returned.
func (c *Client) Stations(ctx context.Context, q StationQuery) (any, error) {
	data, err := c.query(ctx, fdsnws.ServiceStation, q.Args(), q.Extra)
	if err != nil {
		return nil, err
	}
	if !q.Output.IsZero() {
		return nil, q.Output.write(data)
	}
	return c.inventory.ReadInventory(data)
}

// Waveforms fetches waveform data. With q.Output set the response is written
// there and nil is returned; otherwise the result of the waveform reader is
// returned, combined with the instrument responses when q.AttachResponse is
// set.
func (c *Client) Waveforms(ctx context.Context, q WaveformQuery) (any, error) {
	data, err := c.query(ctx, fdsnws.ServiceDataselect, q.Args(), q.Extra)
	if err != nil {
		return nil, err
	}
	if !q.Output.IsZero() {
		return nil, q.Output.write(data)
	}

	waveforms, err := c.waveforms.ReadWaveforms(data)
	if err != nil {
		return nil, err
	}
	if !q.AttachResponse {
		return waveforms, nil
	}

	inventory, err := c.Stations(ctx, StationQuery{
		Network:   q.Network,
		Station:   q.Station,
		Location:  q.Location,
		Channel:   q.Channel,
		StartTime: q.StartTime,
		EndTime:   q.EndTime,
		Level:     "response",
		Extra:     selectionArgs(q.Extra),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch responses: %w", err)
	}
	return c.attacher.AttachResponse(waveforms, inventory)
}

// Version returns the version of a service. The answer is cached for the
// lifetime of the client.
func (c *Client) Version(ctx context.Context, service string) (fdsnws.Version, error) {
	if !fdsnws.IsService(service) {
		return nil, fdsnws.NewError(fdsnws.KindInvalidRequest,
			fmt.Sprintf("Service '%s' is not a valid FDSN web service.", service))
	}

	c.mu.Lock()
	cached, ok := c.versions[service]
	c.mu.Unlock()
	if ok {
		c.metrics.RecordCacheHit(service)
		return append(fdsnws.Version(nil), cached...), nil
	}
	c.metrics.RecordCacheMiss(service)

	data, err := c.fetch(ctx, request{service: service, resource: fdsnws.ResourceVersion})
	if err != nil {
		return nil, err
	}
	version, err := fdsnws.ParseVersion(string(data))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.versions[service] = version
	c.mu.Unlock()
	return append(fdsnws.Version(nil), version...), nil
}

// Describe returns a short summary of the datacenter and its service
// versions.
func (c *Client) Describe(ctx context.Context) (string, error) {
	services := append([]string(nil), fdsnws.Services...)
	sort.Strings(services)

	parts := make([]string, 0, len(services))
	for _, service := range services {
		version, err := c.Version(ctx, service)
		if err != nil {
			return "", fmt.Errorf("%s version: %w", service, err)
		}
		parts = append(parts, fmt.Sprintf("'%s' (v%s)", service, version))
	}
	return fmt.Sprintf("FDSN Webservice Client (base url: %s)\nAvailable Services: %s",
		c.baseURL, strings.Join(parts, ", ")), nil
}

// query validates the arguments of a query call and fetches the result.
// Authenticated clients send dataselect queries to queryauth.
func (c *Client) query(ctx context.Context, service string, explicit, keyword fdsnws.Args) ([]byte, error) {
	params, err := c.schema.Resolve(service, explicit, keyword)
	if err != nil {
		return nil, err
	}
	values, err := c.schema.Encode(service, params, c.logger)
	if err != nil {
		return nil, err
	}

	req := request{service: service, resource: fdsnws.ResourceQuery, query: values, gzip: true}
	if service == fdsnws.ServiceDataselect && c.auth.HasCredentials() {
		req.resource = fdsnws.ResourceQueryAuth
		req.authorize = true
	}
	return c.fetch(ctx, req)
}

type request struct {
	service   string
	resource  string
	query     map[string]string
	gzip      bool
	authorize bool
}

// fetch sends one request and classifies the answer.
func (c *Client) fetch(ctx context.Context, req request) ([]byte, error) {
	url, err := fdsnws.BuildURL(fdsnws.URLSpec{
		BaseURL:         c.baseURL,
		Subpath:         c.subpath,
		Service:         req.service,
		MajorVersion:    c.majorVersions[req.service],
		Resource:        req.resource,
		Query:           req.query,
		ServiceMappings: c.mappings,
	})
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "fdsn "+req.service+"/"+req.resource,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fdsn.service", req.service),
			attribute.String("fdsn.resource", req.resource),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	start := time.Now()
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	if req.authorize {
		if err := c.auth.Authorize(ctx, header); err != nil {
			c.finish(span, req, start, 0, err)
			return nil, err
		}
	}

	out := c.transport.Send(ctx, resilience.Request{URL: url, Header: header, Gzip: req.gzip})
	data, err := fdsnws.Classify(out)
	c.finish(span, req, start, out.StatusCode, err)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", url).Msg("request failed")
		return nil, err
	}
	return data, nil
}

func (c *Client) finish(span trace.Span, req request, start time.Time, status int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = fdsnws.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	c.metrics.RecordRequest(req.service, req.resource, outcome, time.Since(start))
}

// selectionArgs keeps the keyword arguments that narrow a waveform selection
// down, so the matching responses can be requested from the station service.
func selectionArgs(extra fdsnws.Args) fdsnws.Args {
	selection := fdsnws.Args{}
	for key, value := range extra {
		switch fdsnws.CanonicalName(key) {
		case "network", "station", "location", "channel", "starttime", "endtime":
			selection[key] = value
		}
	}
	return selection
}
