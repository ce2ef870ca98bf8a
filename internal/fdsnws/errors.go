package fdsnws

import (
	"errors"
	"strconv"
	"strings"
)

// Kind classifies an Error.
type Kind int

// Error kinds. Input validation kinds are raised before any network call;
// the remaining kinds come out of Classify.
const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindMissingParameter
	KindUnsupportedParameter
	KindTypeConversion
	KindUnauthorized
	KindForbidden
	KindNoData
	KindBadRequest
	KindRequestTooLarge
	KindURITooLarge
	KindTooManyRequests
	KindInternalServerError
	KindServiceUnavailable
	KindTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidRequest:       "invalid_request",
	KindMissingParameter:     "missing_required_parameter",
	KindUnsupportedParameter: "unsupported_parameter",
	KindTypeConversion:       "type_conversion",
	KindUnauthorized:         "unauthorized",
	KindForbidden:            "forbidden",
	KindNoData:               "no_data",
	KindBadRequest:           "bad_request",
	KindRequestTooLarge:      "request_too_large",
	KindURITooLarge:          "uri_too_large",
	KindTooManyRequests:      "too_many_requests",
	KindInternalServerError:  "internal_server_error",
	KindServiceUnavailable:   "service_unavailable",
	KindTimeout:              "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Sentinel errors, one per kind, for use with errors.Is.
var (
	ErrUnknown              = errors.New("fdsn: unknown error")
	ErrInvalidRequest       = errors.New("fdsn: invalid request")
	ErrMissingParameter     = errors.New("fdsn: missing required parameter")
	ErrUnsupportedParameter = errors.New("fdsn: unsupported parameter")
	ErrTypeConversion       = errors.New("fdsn: type conversion failed")
	ErrUnauthorized         = errors.New("fdsn: unauthorized")
	ErrForbidden            = errors.New("fdsn: forbidden")
	ErrNoData               = errors.New("fdsn: no data")
	ErrBadRequest           = errors.New("fdsn: bad request")
	ErrRequestTooLarge      = errors.New("fdsn: request too large")
	ErrURITooLarge          = errors.New("fdsn: request uri too large")
	ErrTooManyRequests      = errors.New("fdsn: too many requests")
	ErrInternalServerError  = errors.New("fdsn: internal server error")
	ErrServiceUnavailable   = errors.New("fdsn: service unavailable")
	ErrTimeout              = errors.New("fdsn: timed out")
)

var kindSentinels = map[Kind]error{
	KindUnknown:              ErrUnknown,
	KindInvalidRequest:       ErrInvalidRequest,
	KindMissingParameter:     ErrMissingParameter,
	KindUnsupportedParameter: ErrUnsupportedParameter,
	KindTypeConversion:       ErrTypeConversion,
	KindUnauthorized:         ErrUnauthorized,
	KindForbidden:            ErrForbidden,
	KindNoData:               ErrNoData,
	KindBadRequest:           ErrBadRequest,
	KindRequestTooLarge:      ErrRequestTooLarge,
	KindURITooLarge:          ErrURITooLarge,
	KindTooManyRequests:      ErrTooManyRequests,
	KindInternalServerError:  ErrInternalServerError,
	KindServiceUnavailable:   ErrServiceUnavailable,
	KindTimeout:              ErrTimeout,
}

// Error is the error type returned for every failed request.
type Error struct {
	Kind Kind

	// StatusCode is the HTTP status that produced the error, zero if none.
	StatusCode int

	// Message is the human readable description.
	Message string

	// ServerMessage is the diagnostic text returned by the server, if any.
	ServerMessage string

	// Err is the underlying cause, e.g. a transport error.
	Err error
}

func newError(kind Kind, status int, message, serverMessage string) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: message, ServerMessage: serverMessage}
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return newError(kind, 0, message, "")
}

func (e *Error) Error() string {
	if e.ServerMessage == "" {
		return e.Message
	}
	lines := []string{e.Message}
	if e.StatusCode != 0 {
		lines = append(lines, "HTTP Status code: "+strconv.Itoa(e.StatusCode))
	}
	lines = append(lines, "Detailed response of server:", "", e.ServerMessage)
	return strings.Join(lines, "\n")
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
