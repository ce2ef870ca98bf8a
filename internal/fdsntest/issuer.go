package fdsntest

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token issuing errors.
var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// RefreshTokenLength is the byte length of refresh tokens.
const RefreshTokenLength = 32

// Issuer signs access tokens and keeps track of outstanding refresh tokens.
// Refresh tokens rotate: each use revokes the presented token.
type Issuer struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	now        func() time.Time

	mu      sync.Mutex
	refresh map[string]string // token -> subject
}

// NewIssuer creates an issuer signing with key.
func NewIssuer(key, issuer string, accessTTL time.Duration) *Issuer {
	return &Issuer{
		signingKey: []byte(key),
		issuer:     issuer,
		accessTTL:  accessTTL,
		now:        time.Now,
		refresh:    make(map[string]string),
	}
}

// AccessToken signs an access token for subject expiring ttl from now. A
// negative ttl yields a token that is already expired.
func (s *Issuer) AccessToken(subject string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return token, nil
}

// Issue returns a fresh access/refresh pair for subject.
func (s *Issuer) Issue(subject string) (access, refresh string, err error) {
	access, err = s.AccessToken(subject, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = generateRefreshToken()
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.refresh[refresh] = subject
	s.mu.Unlock()
	return access, refresh, nil
}

// Validate checks the signature and expiry of an access token.
func (s *Issuer) Validate(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}
	return &claims, nil
}

// Rotate revokes refresh and issues a new pair for its subject.
func (s *Issuer) Rotate(refresh string) (string, string, error) {
	s.mu.Lock()
	subject, ok := s.refresh[refresh]
	delete(s.refresh, refresh)
	s.mu.Unlock()

	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	return s.Issue(subject)
}

func generateRefreshToken() (string, error) {
	b := make([]byte, RefreshTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
