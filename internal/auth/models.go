// Package auth manages the bearer tokens used for authenticated requests to an
// FDSN datacenter: acquiring a token pair with user credentials, verifying the
// access token and refreshing it when it is no longer accepted.
//
// Tokens live in memory only and are never written to disk.
package auth

// Token endpoint paths, relative to the datacenter host.
const (
	TokenPath   = "/api/token"
	VerifyPath  = "/api/token/verify"
	RefreshPath = "/api/token/refresh"
)

// Tokens is an access/refresh token pair.
type Tokens struct {
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

// Empty reports whether neither token is held.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// Status is the result of checking the held access token.
type Status int

const (
	// StatusAbsent means no access token is held. No request was made.
	StatusAbsent Status = iota

	// StatusExpired means the access token's exp claim is in the past.
	// No request was made.
	StatusExpired

	// StatusRejected means the verification endpoint answered with
	// something other than 200.
	StatusRejected

	// StatusValid means the verification endpoint accepted the token.
	StatusValid

	// StatusUnreachable means the verification request failed before any
	// HTTP status was received.
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusExpired:
		return "expired"
	case StatusRejected:
		return "rejected"
	case StatusValid:
		return "valid"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}
