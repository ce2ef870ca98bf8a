package fdsnws_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		spec     fdsnws.URLSpec
		expected string
	}{
		{
			name: "no parameters",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "dataselect", MajorVersion: 1, Resource: "application.wadl",
			},
			expected: "http://service.example.org/fdsnws/dataselect/1/application.wadl",
		},
		{
			name: "single parameter",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "/fdsnws",
				Service: "dataselect", MajorVersion: 1, Resource: "query",
				Query: map[string]string{"cha": "EHE"},
			},
			expected: "http://service.example.org/fdsnws/dataselect/1/query?cha=EHE",
		},
		{
			name: "no subpath",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org",
				Service: "station", MajorVersion: 2, Resource: "version",
			},
			expected: "http://service.example.org/station/2/version",
		},
		{
			name: "service mapping",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "station", MajorVersion: 1, Resource: "query",
				ServiceMappings: map[string]string{"station": "http://other.example.org/custom/station/"},
				Query:           map[string]string{"net": "IU"},
			},
			expected: "http://other.example.org/custom/station/query?net=IU",
		},
		{
			name: "safe characters and sorted keys",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "station", MajorVersion: 1, Resource: "query",
				Query: map[string]string{
					"station":   "AN*,B?C",
					"starttime": "2012-01-02T03:04:05.666666",
					"network":   " IU ",
				},
			},
			expected: "http://service.example.org/fdsnws/station/1/query?" +
				"network=IU&starttime=2012-01-02T03:04:05.666666&station=AN*,B%3FC",
		},
		{
			name: "location canonicalized",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "dataselect", MajorVersion: 1, Resource: "query",
				Query: map[string]string{"location": "00,,10"},
			},
			expected: "http://service.example.org/fdsnws/dataselect/1/query?location=00,--,10",
		},
		{
			name: "spaces become plus",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "station", MajorVersion: 1, Resource: "query",
				Query: map[string]string{"format": "a b&c"},
			},
			expected: "http://service.example.org/fdsnws/station/1/query?format=a+b%26c",
		},
		{
			name: "reserved and non-ascii bytes encoded",
			spec: fdsnws.URLSpec{
				BaseURL: "http://service.example.org", Subpath: "fdsnws",
				Service: "station", MajorVersion: 1, Resource: "query",
				Query: map[string]string{"format": "é/%+~"},
			},
			expected: "http://service.example.org/fdsnws/station/1/query?format=%C3%A9%2F%25%2B~",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := fdsnws.BuildURL(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}
}

func TestBuildURL_UnknownService(t *testing.T) {
	_, err := fdsnws.BuildURL(fdsnws.URLSpec{
		BaseURL: "http://service.example.org", Service: "event", Resource: "query",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, fdsnws.ErrInvalidRequest)
}

func TestCanonicalLocation(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "--"},
		{"  ", "--"},
		{"00", "00"},
		{",EH", "--,EH"},
		{"EH,", "EH,--"},
		{"BH,,EH", "BH,--,EH"},
		{",,,", "--,--,--,--"},
		{"00, 10", "00,10"},
		{"--", "--"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			once := fdsnws.CanonicalLocation(tt.input)
			assert.Equal(t, tt.expected, once)
			assert.Equal(t, once, fdsnws.CanonicalLocation(once), "canonicalization must be idempotent")
		})
	}
}

func TestSchema_Encode(t *testing.T) {
	schema := fdsnws.DefaultSchema()
	log := zerolog.Nop()

	encoded, err := schema.Encode("station", fdsnws.Parameters{
		"network":           "IU",
		"starttime":         time.Date(2012, 1, 2, 3, 4, 5, 666666000, time.UTC),
		"minlatitude":       10,
		"maxradius":         1.5,
		"includerestricted": false,
		"level":             []byte("channel"),
	}, log)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"network":           "IU",
		"starttime":         "2012-01-02T03:04:05.666666",
		"minlatitude":       "10.0",
		"maxradius":         "1.5",
		"includerestricted": "false",
		"level":             "channel",
	}, encoded)
}

func TestSchema_Encode_MissingRequired(t *testing.T) {
	schema := fdsnws.DefaultSchema()

	_, err := schema.Encode("dataselect", fdsnws.Parameters{
		"network": "IU",
		"endtime": "2012-01-02",
	}, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, fdsnws.ErrMissingParameter)
	assert.Contains(t, err.Error(), "starttime")
}

func TestSchema_Encode_UnknownParameters(t *testing.T) {
	schema := fdsnws.DefaultSchema()

	t.Run("standard parameter is dropped", func(t *testing.T) {
		encoded, err := schema.Encode("station", fdsnws.Parameters{
			"network":      "IU",
			"minmagnitude": 5.0,
		}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"network": "IU"}, encoded)
	})

	t.Run("ignored parameter is dropped", func(t *testing.T) {
		encoded, err := schema.Encode("station", fdsnws.Parameters{
			"nodata": 404,
		}, zerolog.Nop())
		require.NoError(t, err)
		assert.Empty(t, encoded)
	})

	t.Run("unknown parameter is rejected", func(t *testing.T) {
		_, err := schema.Encode("station", fdsnws.Parameters{
			"bogus": "x",
		}, zerolog.Nop())
		require.Error(t, err)
		assert.ErrorIs(t, err, fdsnws.ErrUnsupportedParameter)
		assert.Contains(t, err.Error(), "bogus")
	})
}

func TestSchema_Encode_ConversionFailure(t *testing.T) {
	schema := fdsnws.DefaultSchema()

	_, err := schema.Encode("station", fdsnws.Parameters{
		"minlatitude": "north",
	}, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, fdsnws.ErrTypeConversion)
	assert.Equal(t, "'north' could not be converted to type 'float'.", err.Error())
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{"shortcut", "taps", "https://taps.earth.sinica.edu.tw", nil},
		{"trailing slash", "http://service.example.org/", "http://service.example.org", nil},
		{"ipv4 with port", "https://127.0.0.1:8443", "https://127.0.0.1:8443", nil},
		{"localhost with path", "http://localhost:8080/fdsn", "http://localhost:8080/fdsn", nil},
		{"ipv6", "http://[::1]:8080", "http://[::1]:8080", nil},
		{"unknown shortcut", "NOPE", "", fdsnws.ErrUnknownShortcut},
		{"bad scheme", "ftp://service.example.org", "", fdsnws.ErrInvalidBaseURL},
		{"garbage", "http://exa mple.org", "", fdsnws.ErrInvalidBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fdsnws.ResolveBaseURL(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
