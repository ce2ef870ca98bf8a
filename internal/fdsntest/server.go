// Package fdsntest runs an in-process FDSN datacenter for tests. It serves the
// station and dataselect query and version resources, the authenticated
// queryauth route and the JWT token endpoints, over TLS.
package fdsntest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// Default payloads returned by the query resources.
const (
	StationXML = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<FDSNStationXML xmlns="http://www.fdsn.org/xml/station/1" schemaVersion="1.1"></FDSNStationXML>`
	ResponseXML = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<FDSNStationXML xmlns="http://www.fdsn.org/xml/station/1" schemaVersion="1.1"><Response/></FDSNStationXML>`
)

// MiniSEED stands in for a waveform record.
var MiniSEED = []byte("000001D TW   ANMO  BHZ\x00\x00")

// Config holds configuration for the fake datacenter.
type Config struct {
	// Username and Password are the only credentials the token endpoint
	// accepts.
	Username string
	Password string

	// SigningKey signs access tokens. Default: "fdsntest-signing-key"
	SigningKey string

	// AccessTTL is the lifetime of issued access tokens. Default: 1 hour
	AccessTTL time.Duration

	// Versions maps a service to the text of its version resource.
	// Default: 1.1.2 for station, 1.1.0 for dataselect
	Versions map[string]string

	// RateLimit caps query requests per minute. Zero disables limiting.
	RateLimit int

	// Logger receives one debug line per request. Default: disabled
	Logger *zerolog.Logger
}

// Request is a request received by the fake datacenter.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Status is the response status, set once the handler returns.
	Status int
	// TraceID is the trace propagated by the client, if any.
	TraceID string
}

// Server is a running fake datacenter.
type Server struct {
	*httptest.Server

	Issuer *Issuer

	cfg Config

	mu       sync.Mutex
	requests []Request
	handlers map[string]http.HandlerFunc
}

// NewServer starts a fake datacenter and closes it when the test ends.
func NewServer(t testing.TB, cfg Config) *Server {
	t.Helper()

	if cfg.SigningKey == "" {
		cfg.SigningKey = "fdsntest-signing-key"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.Versions == nil {
		cfg.Versions = map[string]string{"station": "1.1.2", "dataselect": "1.1.0"}
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}

	s := &Server{
		Issuer:   NewIssuer(cfg.SigningKey, "fdsntest", cfg.AccessTTL),
		cfg:      cfg,
		handlers: make(map[string]http.HandlerFunc),
	}
	s.Server = httptest.NewTLSServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Handle overrides the handler of a route such as "station/query" or
// "token/refresh".
func (s *Server) Handle(route string, h http.HandlerFunc) {
	s.mu.Lock()
	s.handlers[route] = h
	s.mu.Unlock()
}

// Requests returns every request received for a path suffix such as
// "/dataselect/0/queryauth" or "/api/token/verify".
func (s *Server) Requests(suffix string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of requests received for a path suffix.
func (s *Server) Count(suffix string) int {
	return len(s.Requests(suffix))
}

// IssueTokens returns a valid token pair for the configured user.
func (s *Server) IssueTokens(t testing.TB) (access, refresh string) {
	t.Helper()
	access, refresh, err := s.Issuer.Issue(s.cfg.Username)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return access, refresh
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(middleware.Compress(5, "text/plain", "application/xml", "application/json", "application/vnd.fdsn.mseed"))

	r.Post("/api/token", s.route("token", s.handleToken))
	r.Post("/api/token/verify", s.route("token/verify", s.handleVerify))
	r.Post("/api/token/refresh", s.route("token/refresh", s.handleRefresh))

	r.Route("/fdsnws/{service}/{major}", func(r chi.Router) {
		r.Use(s.knownService)
		r.Get("/version", s.dispatch("version", s.handleVersion))

		r.Group(func(r chi.Router) {
			if s.cfg.RateLimit > 0 {
				r.Use(httprate.Limit(
					s.cfg.RateLimit,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						WriteError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
					}),
				))
			}
			r.Get("/query", s.dispatch("query", s.handleQuery))
			r.Post("/query", s.dispatch("query", s.handleQuery))
			r.With(s.requireBearer).Get("/queryauth", s.dispatch("queryauth", s.handleQuery))
			r.With(s.requireBearer).Post("/queryauth", s.dispatch("queryauth", s.handleQuery))
		})
	})

	return r
}

// record keeps a copy of every request, body included, and fills in the
// response status once the handler is done.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		rec := Request{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Header:  r.Header.Clone(),
			Body:    body,
			TraceID: traceID(r),
		}
		s.mu.Lock()
		idx := len(s.requests)
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		rec.Status = sw.status
		logRequest(*s.cfg.Logger, r, rec, sw.written, time.Since(start))

		s.mu.Lock()
		s.requests[idx].Status = sw.status
		s.mu.Unlock()
	})
}

func (s *Server) knownService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.cfg.Versions[chi.URLParam(r, "service")]; !ok {
			WriteError(w, r, http.StatusNotFound, "Unknown service")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			WriteError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		if _, err := s.Issuer.Validate(token); err != nil {
			WriteError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// route returns the override registered for name, or h.
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		override, ok := s.handlers[name]
		s.mu.Unlock()
		if ok {
			override(w, r)
			return
		}
		h(w, r)
	}
}

// dispatch is route keyed by "<service>/<resource>".
func (s *Server) dispatch(resource string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.route(chi.URLParam(r, "service")+"/"+resource, h)(w, r)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "Malformed token request")
		return
	}
	if req.Username == "" || req.Username != s.cfg.Username || req.Password != s.cfg.Password {
		WriteError(w, r, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, refresh, err := s.Issuer.Issue(req.Username)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "Malformed verify request")
		return
	}
	if _, err := s.Issuer.Validate(req.Token); err != nil {
		WriteError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, map[string]string{})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "Malformed refresh request")
		return
	}
	access, refresh, err := s.Issuer.Rotate(req.Refresh)
	if err != nil {
		WriteError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, s.cfg.Versions[chi.URLParam(r, "service")])
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "service") == "dataselect" {
		w.Header().Set("Content-Type", "application/vnd.fdsn.mseed")
		_, _ = w.Write(MiniSEED)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if r.URL.Query().Get("level") == "response" {
		_, _ = io.WriteString(w, ResponseXML)
		return
	}
	_, _ = io.WriteString(w, StationXML)
}

// WriteError writes an FDSN formatted error document.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	if status == http.StatusNoContent {
		return
	}
	_, _ = fmt.Fprintf(w, "Error %d: %s\n\n%s\n\nRequest:\n%s\n\nRequest Submitted:\n%s\n",
		status, http.StatusText(status), detail, r.URL.String(), time.Now().UTC().Format(time.RFC3339))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
