// Package fdsnws implements the request side of the FDSN web services:
// parameter schemas, argument resolution, query URL construction and the
// mapping of HTTP outcomes onto typed errors.
package fdsnws

import (
	"strconv"
	"strings"
)

// Supported FDSN services.
const (
	ServiceDataselect = "dataselect"
	ServiceStation    = "station"
)

// Services lists the FDSN services this client speaks, in display order.
var Services = []string{ServiceDataselect, ServiceStation}

// Resource types appended after the service version segment.
const (
	ResourceQuery     = "query"
	ResourceQueryAuth = "queryauth"
	ResourceVersion   = "version"
)

// ValueType is the declared type of a service parameter.
type ValueType int

// Parameter value types.
const (
	TypeString ValueType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeTimestamp
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "str"
	case TypeInteger:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParameterSpec describes one parameter accepted by a service.
type ParameterSpec struct {
	Name     string
	Type     ValueType
	Required bool

	// Default is the server-side default, informational only. Nil when the
	// parameter has no default.
	Default any
}

// Args holds call arguments keyed by parameter name or alias.
type Args map[string]any

// Parameters is the resolved, canonical parameter set of a single request.
type Parameters map[string]any

// Outcome is the raw result of one HTTP exchange.
type Outcome struct {
	// StatusCode is zero when no HTTP response was received.
	StatusCode int

	// URL is the URL of the request that produced the answer, after any
	// redirects.
	URL string

	Body []byte

	// ServerMessage is a short description of a transport failure.
	ServerMessage string

	// Err is the transport error, if any.
	Err error
}

// Version is a web service version as reported by the /version resource.
type Version []int

// ParseVersion parses a dotted version string such as "1.2.3".
func ParseVersion(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, newError(KindUnknown, 0, "empty version response", "")
	}
	parts := strings.Split(raw, ".")
	version := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, newError(KindUnknown, 0, "invalid version response '"+raw+"'", "")
		}
		version = append(version, n)
	}
	return version, nil
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// IsService reports whether name is one of the supported FDSN services.
func IsService(name string) bool {
	return name == ServiceDataselect || name == ServiceStation
}
