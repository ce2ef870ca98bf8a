package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapsdmc/fdsnclient/internal/auth"
	"github.com/tapsdmc/fdsnclient/internal/fdsntest"
)

func TestExpiresAt(t *testing.T) {
	issuer := fdsntest.NewIssuer("signing-key-unknown-to-the-client", "fdsntest", time.Hour)

	token, err := issuer.AccessToken("seismo", 30*time.Minute)
	require.NoError(t, err)

	exp, err := auth.ExpiresAt(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)
}

func TestExpiresAt_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"opaque token", "b1946ac92492d2347c6235b4d2611184"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ExpiresAt(tt.token)
			assert.ErrorIs(t, err, auth.ErrMalformedToken)
		})
	}
}

func TestExpired(t *testing.T) {
	issuer := fdsntest.NewIssuer("key", "fdsntest", time.Hour)

	live, err := issuer.AccessToken("seismo", time.Hour)
	require.NoError(t, err)
	stale, err := issuer.AccessToken("seismo", -time.Hour)
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, auth.Expired(live, now))
	assert.True(t, auth.Expired(stale, now))
	assert.True(t, auth.Expired(live, now.Add(2*time.Hour)))
	assert.False(t, auth.Expired("opaque-token", now), "non-JWT tokens are left to the verify endpoint")
}
