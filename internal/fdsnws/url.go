package fdsnws

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultSubpath is inserted between the base URL and the service name.
const DefaultSubpath = "fdsnws"

// URLMappings maps known datacenter shortcuts onto their base URLs.
var URLMappings = map[string]string{
	"TAPS": "https://taps.earth.sinica.edu.tw",
}

// Base URL errors.
var (
	ErrUnknownShortcut = errors.New("unknown FDSN service shortcut")
	ErrInvalidBaseURL  = errors.New("invalid FDSN service base URL")
)

const (
	reUint8 = `(?:25[0-5]|2[0-4]\d|[0-1]?\d{1,2})`
	reHex4  = `(?:[\d,a-f]{4}|[1-9,a-f][0-9,a-f]{0,2}|0)`
	reIPv4  = `(?:` + reUint8 + `(?:\.` + reUint8 + `){3})`
	reIPv6  = `(?:\[` + reHex4 + `(?::` + reHex4 + `){7}\]` +
		`|\[(?:` + reHex4 + `:){0,5}` + reHex4 + `::\]` +
		`|\[::` + reHex4 + `(?::` + reHex4 + `){0,5}\]` +
		`|\[::` + reHex4 + `(?::` + reHex4 + `){0,3}:` + reIPv4 + `\]` +
		`|\[` + reHex4 + `:(?:` + reHex4 + `:|:` + reHex4 + `){0,4}:` + reHex4 + `\])`
)

var baseURLPattern = regexp.MustCompile(`(?i)^https?://` +
	`(` + reIPv4 + `|` + reIPv6 + `|localhost|\w+|(?:\w(?:[\w-]{0,61}\w)?\.)+([a-z]{2,6}))` +
	`(?::\d{2,5})?` +
	`(/[\w.-]+)*/?$`)

// ValidateBaseURL reports whether raw looks like an http(s) base URL.
func ValidateBaseURL(raw string) bool {
	return baseURLPattern.MatchString(raw)
}

// ResolveBaseURL expands a datacenter shortcut and normalizes a base URL.
func ResolveBaseURL(raw string) (string, error) {
	if mapped, ok := URLMappings[strings.ToUpper(raw)]; ok {
		raw = mapped
	} else if isAlpha(raw) {
		return "", fmt.Errorf("%w: %s", ErrUnknownShortcut, raw)
	}

	raw = strings.Trim(raw, "/")
	if !ValidateBaseURL(raw) {
		return "", fmt.Errorf("%w: %s", ErrInvalidBaseURL, raw)
	}
	return raw, nil
}

// Encode validates params against the service schema and serializes every
// accepted value. Parameters the service does not know are dropped with a
// warning when they are standard FDSN parameters or on the ignore list, and
// rejected otherwise.
func (s *Schema) Encode(service string, params Parameters, log zerolog.Logger) (map[string]string, error) {
	if !IsService(service) {
		return nil, unknownServiceError(service)
	}

	for _, name := range s.Required(service) {
		if v, ok := params[name]; !ok || deref(v) == nil {
			return nil, newError(KindMissingParameter, 0,
				fmt.Sprintf("Parameter '%s' is required.", name), "")
		}
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	encoded := make(map[string]string, len(params))
	for _, key := range keys {
		spec, ok := s.Lookup(service, key)
		if !ok {
			switch {
			case s.IsStandard(service, key):
				log.Warn().
					Str("service", service).
					Str("parameter", key).
					Msg("standard parameter not supported by the web service, ignoring it")
				continue
			case isIgnored(key):
				log.Warn().
					Str("service", service).
					Str("parameter", key).
					Msg("parameter is not useful for this client, ignoring it")
				continue
			default:
				return nil, newError(KindUnsupportedParameter, 0,
					fmt.Sprintf("The parameter '%s' is not supported by the service.", key), "")
			}
		}

		value, err := spec.Type.Convert(params[key])
		if err != nil {
			return nil, err
		}
		encoded[key] = value.String()
	}
	return encoded, nil
}

// CanonicalLocation rewrites a location code list so that blank codes are
// sent as "--".
func CanonicalLocation(loc string) string {
	loc = strings.ReplaceAll(loc, " ", "")
	if loc == "" {
		return "--"
	}
	if strings.HasPrefix(loc, ",") {
		loc = "--" + loc
	}
	if strings.HasSuffix(loc, ",") {
		loc += "--"
	}
	for strings.Contains(loc, ",,") {
		loc = strings.ReplaceAll(loc, ",,", ",--,")
	}
	return loc
}

// URLSpec describes a request URL.
type URLSpec struct {
	BaseURL      string
	Subpath      string
	Service      string
	MajorVersion int
	Resource     string

	// Query holds serialized parameter values.
	Query map[string]string

	// ServiceMappings replaces base/subpath/service/version for a service.
	ServiceMappings map[string]string
}

// BuildURL assembles the request URL of an FDSN web service resource.
func BuildURL(spec URLSpec) (string, error) {
	if !IsService(spec.Service) {
		return "", unknownServiceError(spec.Service)
	}

	var target string
	if mapped, ok := spec.ServiceMappings[spec.Service]; ok {
		target = strings.TrimSuffix(mapped, "/") + "/" + spec.Resource
	} else {
		parts := []string{spec.BaseURL}
		if sub := strings.Trim(spec.Subpath, "/"); sub != "" {
			parts = append(parts, sub)
		}
		parts = append(parts, spec.Service, strconv.Itoa(spec.MajorVersion), spec.Resource)
		target = strings.Join(parts, "/")
	}

	if len(spec.Query) == 0 {
		return target, nil
	}

	keys := make([]string, 0, len(spec.Query))
	for key := range spec.Query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		value := strings.TrimSpace(spec.Query[key])
		if key == "location" {
			value = CanonicalLocation(value)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeQuery(key))
		b.WriteByte('=')
		b.WriteString(escapeQuery(value))
	}
	return target + "?" + b.String(), nil
}

// listSafe restores the characters FDSN list parameters and timestamps use,
// which url.QueryEscape would otherwise encode.
var listSafe = strings.NewReplacer("%3A", ":", "%2C", ",", "%2A", "*")

// escapeQuery percent-encodes a query component, leaving ':', ',' and '*'
// alone so list parameters and timestamps stay readable.
func escapeQuery(s string) string {
	return listSafe.Replace(url.QueryEscape(s))
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			return false
		}
	}
	return true
}
