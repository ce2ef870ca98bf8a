package client_test

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapsdmc/fdsnclient/internal/client"
	"github.com/tapsdmc/fdsnclient/internal/fdsntest"
	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
)

var (
	start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = start.Add(time.Hour)
)

func newClient(t *testing.T, srv *fdsntest.Server, cfg client.Config, opts ...client.Option) *client.Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	opts = append([]client.Option{client.WithHTTPClient(srv.Client())}, opts...)
	c, err := client.New(cfg, opts...)
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }

func TestNew(t *testing.T) {
	c, err := client.New(client.Config{})
	require.NoError(t, err)
	assert.Equal(t, "https://taps.earth.sinica.edu.tw", c.BaseURL())
	assert.False(t, c.Authenticated())

	_, err = client.New(client.Config{BaseURL: "NOWHERE"})
	assert.ErrorIs(t, err, fdsnws.ErrUnknownShortcut)

	_, err = client.New(client.Config{BaseURL: "ftp://service.example.org"})
	assert.ErrorIs(t, err, fdsnws.ErrInvalidBaseURL)

	_, err = client.New(client.Config{MajorVersions: map[string]int{"event": 1}})
	assert.Error(t, err)
}

func TestNew_DoesNotContactServer(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo", Password: "hunter2"})
	c := newClient(t, srv, client.Config{Username: "seismo", Password: "hunter2"})

	assert.True(t, c.Authenticated())
	assert.True(t, c.Tokens().Empty())
	assert.Zero(t, srv.Count("/api/token"))
}

func TestClient_Stations(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{UserAgent: "TAPSClient/test"})

	inv, err := c.Stations(context.Background(), client.StationQuery{
		Network:     "TW",
		Station:     "ANMO",
		StartTime:   start,
		MinLatitude: ptr(21.5),
		Level:       "channel",
		Extra:       fdsnws.Args{"cha": "BH?"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(fdsntest.StationXML), inv)

	reqs := srv.Requests("/fdsnws/station/0/query")
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "TW", req.Query.Get("network"))
	assert.Equal(t, "ANMO", req.Query.Get("station"))
	assert.Equal(t, "BH?", req.Query.Get("channel"))
	assert.Equal(t, "21.5", req.Query.Get("minlatitude"))
	assert.Equal(t, "channel", req.Query.Get("level"))
	assert.Equal(t, "2020-01-01T00:00:00.000000", req.Query.Get("starttime"))
	assert.Equal(t, "gzip", req.Header.Get("Accept-Encoding"))
	assert.Equal(t, "TAPSClient/test", req.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestClient_StationsBlankLocation(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})

	_, err := c.Stations(context.Background(), client.StationQuery{
		Network: "TW",
		Extra:   fdsnws.Args{"location": ""},
	})
	require.NoError(t, err)

	reqs := srv.Requests("/station/0/query")
	require.Len(t, reqs, 1)
	assert.Equal(t, "--", reqs[0].Query.Get("location"))
}

func TestClient_InvalidInputNeverReachesNetwork(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})
	ctx := context.Background()

	_, err := c.Stations(ctx, client.StationQuery{Network: "TW", Extra: fdsnws.Args{"net": "IU"}})
	assert.ErrorIs(t, err, fdsnws.ErrInvalidRequest)

	_, err = c.Stations(ctx, client.StationQuery{Extra: fdsnws.Args{"minlat": "north"}})
	assert.ErrorIs(t, err, fdsnws.ErrTypeConversion)

	_, err = c.Stations(ctx, client.StationQuery{Extra: fdsnws.Args{"colour": "red"}})
	assert.ErrorIs(t, err, fdsnws.ErrUnsupportedParameter)

	_, err = c.Waveforms(ctx, client.WaveformQuery{Network: "TW", StartTime: start})
	assert.ErrorIs(t, err, fdsnws.ErrMissingParameter)
	assert.Contains(t, err.Error(), "endtime")

	assert.Zero(t, srv.Count("query"))
}

func TestClient_AnonymousWaveforms(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})

	data, err := c.Waveforms(context.Background(), client.WaveformQuery{
		Network:     "TW",
		Station:     "ANMO",
		Location:    "00",
		Channel:     "BHZ",
		StartTime:   start,
		EndTime:     end,
		LongestOnly: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, fdsntest.MiniSEED, data)

	reqs := srv.Requests("/dataselect/0/query")
	require.Len(t, reqs, 1)
	assert.Equal(t, "true", reqs[0].Query.Get("longestonly"))
	assert.Zero(t, srv.Count("queryauth"))
	assert.Zero(t, srv.Count("/api/token"))
	assert.Zero(t, srv.Count("/api/token/verify"))
	assert.Zero(t, srv.Count("/api/token/refresh"))
	assert.Empty(t, reqs[0].Header.Get("Authorization"))
}

func TestClient_AuthenticatedWaveforms(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo", Password: "hunter2"})
	c := newClient(t, srv, client.Config{Username: "seismo", Password: "hunter2"})
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))

	data, err := c.Waveforms(ctx, client.WaveformQuery{Network: "TW", StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Equal(t, fdsntest.MiniSEED, data)

	reqs := srv.Requests("/dataselect/0/queryauth")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+c.Tokens().Access, reqs[0].Header.Get("Authorization"))
	assert.Equal(t, 1, srv.Count("/api/token/verify"))
	assert.Zero(t, srv.Count("/api/token/refresh"))
	assert.Zero(t, srv.Count("/dataselect/0/query"))
}

func TestClient_WaveformsLogsInOnDemand(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo", Password: "hunter2"})
	c := newClient(t, srv, client.Config{Username: "seismo", Password: "hunter2"})

	data, err := c.Waveforms(context.Background(), client.WaveformQuery{Network: "TW", StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Equal(t, fdsntest.MiniSEED, data)

	assert.Equal(t, 1, srv.Count("/api/token"))
	assert.Equal(t, 1, srv.Count("/dataselect/0/queryauth"))
	assert.False(t, c.Tokens().Empty())
}

func TestClient_RefreshOnlyClientRefreshesOnce(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo"})
	_, refresh := srv.IssueTokens(t)
	c := newClient(t, srv, client.Config{RefreshToken: refresh})

	_, err := c.Waveforms(context.Background(), client.WaveformQuery{Network: "TW", StartTime: start, EndTime: end})
	require.NoError(t, err)

	assert.Zero(t, srv.Count("/api/token/verify"))
	assert.Equal(t, 1, srv.Count("/api/token/refresh"))
	assert.Equal(t, 1, srv.Count("/dataselect/0/queryauth"))
	assert.NotEmpty(t, c.Tokens().Access)
}

func TestClient_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo"})
	_, refresh := srv.IssueTokens(t)
	expired, err := srv.Issuer.AccessToken("seismo", -time.Minute)
	require.NoError(t, err)
	c := newClient(t, srv, client.Config{AccessToken: expired, RefreshToken: refresh})

	_, err = c.Waveforms(context.Background(), client.WaveformQuery{Network: "TW", StartTime: start, EndTime: end})
	require.NoError(t, err)

	assert.Zero(t, srv.Count("/api/token/verify"))
	assert.Equal(t, 1, srv.Count("/api/token/refresh"))
	assert.NotEqual(t, expired, c.Tokens().Access)
}

func TestClient_RefreshFailureSendsNoDataRequest(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{Username: "seismo"})
	c := newClient(t, srv, client.Config{RefreshToken: "revoked"})

	_, err := c.Waveforms(context.Background(), client.WaveformQuery{Network: "TW", StartTime: start, EndTime: end})
	require.Error(t, err)
	assert.ErrorIs(t, err, fdsnws.ErrUnauthorized)

	assert.Equal(t, 1, srv.Count("/api/token/refresh"))
	assert.Zero(t, srv.Count("queryauth"))
	assert.Zero(t, srv.Count("/dataselect/0/query"))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNoContent, fdsnws.ErrNoData},
		{http.StatusBadRequest, fdsnws.ErrBadRequest},
		{http.StatusForbidden, fdsnws.ErrForbidden},
		{http.StatusRequestEntityTooLarge, fdsnws.ErrRequestTooLarge},
		{http.StatusServiceUnavailable, fdsnws.ErrServiceUnavailable},
		{http.StatusTeapot, fdsnws.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := fdsntest.NewServer(t, fdsntest.Config{})
			srv.Handle("dataselect/query", func(w http.ResponseWriter, r *http.Request) {
				fdsntest.WriteError(w, r, tt.status, "no luck")
			})
			c := newClient(t, srv, client.Config{})

			_, err := c.Waveforms(context.Background(), client.WaveformQuery{StartTime: start, EndTime: end})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var fe *fdsnws.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.StatusCode)
			if tt.status != http.StatusNoContent {
				assert.Contains(t, fe.ServerMessage, "no luck")
			}
		})
	}
}

func TestClient_RateLimited(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{RateLimit: 1})
	c := newClient(t, srv, client.Config{})
	ctx := context.Background()

	_, err := c.Stations(ctx, client.StationQuery{Network: "TW"})
	require.NoError(t, err)

	_, err = c.Stations(ctx, client.StationQuery{Network: "TW"})
	assert.ErrorIs(t, err, fdsnws.ErrTooManyRequests)
}

func TestClient_Timeout(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	srv.Handle("station/query", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newClient(t, srv, client.Config{})
	_, err := c.Stations(ctx, client.StationQuery{Network: "TW"})
	assert.ErrorIs(t, err, fdsnws.ErrTimeout)
}

func TestClient_ConfiguredTimeoutWithInjectedHTTPClient(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	srv.Handle("station/query", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	c := newClient(t, srv, client.Config{Timeout: 50 * time.Millisecond})
	_, err := c.Stations(context.Background(), client.StationQuery{Network: "TW"})
	assert.ErrorIs(t, err, fdsnws.ErrTimeout)
}

func TestClient_Output(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})
	ctx := context.Background()

	var buf bytes.Buffer
	res, err := c.Stations(ctx, client.StationQuery{Network: "TW", Output: client.ToWriter(&buf)})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, fdsntest.StationXML, buf.String())

	path := filepath.Join(t.TempDir(), "TW.mseed")
	res, err = c.Waveforms(ctx, client.WaveformQuery{StartTime: start, EndTime: end, Output: client.ToFile(path)})
	require.NoError(t, err)
	assert.Nil(t, res)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fdsntest.MiniSEED, written)
}

func TestClient_Readers(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{},
		client.WithInventoryReader(client.InventoryReaderFunc(func(data []byte) (any, error) {
			return "inventory:" + strconv.FormatBool(strings.Contains(string(data), "<Response/>")), nil
		})),
		client.WithWaveformReader(client.WaveformReaderFunc(func(data []byte) (any, error) {
			return "stream", nil
		})),
	)

	res, err := c.Waveforms(context.Background(), client.WaveformQuery{
		Network:        "TW",
		Station:        "ANMO",
		StartTime:      start,
		EndTime:        end,
		AttachResponse: true,
		Extra:          fdsnws.Args{"cha": "BHZ"},
	})
	require.NoError(t, err)
	assert.Equal(t, client.WithResponse{Waveforms: "stream", Inventory: "inventory:true"}, res)

	reqs := srv.Requests("/station/0/query")
	require.Len(t, reqs, 1)
	assert.Equal(t, "response", reqs[0].Query.Get("level"))
	assert.Equal(t, "ANMO", reqs[0].Query.Get("station"))
	assert.Equal(t, "BHZ", reqs[0].Query.Get("channel"))
}

func TestClient_VersionCached(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.Version(ctx, "station")
		require.NoError(t, err)
		assert.Equal(t, fdsnws.Version{1, 1, 2}, v)
	}
	assert.Equal(t, 1, srv.Count("/station/0/version"))

	_, err := c.Version(ctx, "event")
	assert.ErrorIs(t, err, fdsnws.ErrInvalidRequest)
}

func TestClient_VersionUsesPlainRouteWhenAuthenticated(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{AccessToken: "a", RefreshToken: "r"})

	v, err := c.Version(context.Background(), "dataselect")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v.String())
	assert.Zero(t, srv.Count("/api/token/verify"))
}

func TestClient_Describe(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{})

	desc, err := c.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FDSN Webservice Client (base url: "+srv.URL+")\n"+
		"Available Services: 'dataselect' (v1.1.0), 'station' (v1.1.2)", desc)
}

func TestClient_MajorVersionAndMappings(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{
		MajorVersions:   map[string]int{"station": 1},
		ServiceMappings: map[string]string{"dataselect": srv.URL + "/fdsnws/dataselect/7/"},
	})
	ctx := context.Background()

	_, err := c.Version(ctx, "station")
	require.NoError(t, err)
	_, err = c.Version(ctx, "dataselect")
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Count("/fdsnws/station/1/version"))
	assert.Equal(t, 1, srv.Count("/fdsnws/dataselect/7/version"))
}

func TestClient_Logout(t *testing.T) {
	srv := fdsntest.NewServer(t, fdsntest.Config{})
	c := newClient(t, srv, client.Config{AccessToken: "a", RefreshToken: "r"}, client.WithLogger(zerolog.Nop()))

	assert.True(t, c.Authenticated())
	c.Logout()
	assert.False(t, c.Authenticated())

	_, err := c.Waveforms(context.Background(), client.WaveformQuery{StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count("/dataselect/0/query"))
}

func TestDefaultUserAgent(t *testing.T) {
	assert.Regexp(t, `^TAPSClient/\S+ \(\w+-\w+, Go .+\)$`, client.DefaultUserAgent())
}
