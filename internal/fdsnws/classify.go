package fdsnws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var statusKinds = map[int]struct {
	kind    Kind
	message string
}{
	http.StatusNoContent: {KindNoData, "No data available for request."},
	http.StatusBadRequest: {KindBadRequest, "Bad request. If you think your request was valid " +
		"please contact the developers."},
	http.StatusUnauthorized: {KindUnauthorized, "Unauthorized, authentication required."},
	http.StatusForbidden:    {KindForbidden, "Authentication failed."},
	http.StatusRequestEntityTooLarge: {KindRequestTooLarge, "Request would result in too much data. " +
		"Denied by the datacenter. Split the request in smaller parts"},
	http.StatusRequestURITooLong: {KindURITooLarge, "The request URI is too large. " +
		"Please contact the developers."},
	http.StatusTooManyRequests: {KindTooManyRequests, "Sent too many requests in a given amount of time " +
		"('rate limiting'). Wait before making a new request."},
	http.StatusInternalServerError: {KindInternalServerError, "Service responds: Internal server error"},
	http.StatusServiceUnavailable:  {KindServiceUnavailable, "Service temporarily unavailable"},
}

// Classify maps an HTTP outcome onto its payload or a typed *Error.
func Classify(out Outcome) ([]byte, error) {
	if out.StatusCode == http.StatusOK {
		return out.Body, nil
	}

	if out.StatusCode == 0 {
		if isTimeout(out) {
			return nil, &Error{Kind: KindTimeout, Message: "Timed Out", Err: out.Err}
		}
		desc := out.ServerMessage
		if desc == "" && out.Err != nil {
			desc = out.Err.Error()
		}
		return nil, &Error{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("Unknown Error (%s): %s", errorClass(out.Err), desc),
			Err:     out.Err,
		}
	}

	info := ServerText(out.Body)
	if known, ok := statusKinds[out.StatusCode]; ok {
		return nil, newError(known.kind, out.StatusCode, known.message, info)
	}
	return nil, newError(KindUnknown, out.StatusCode,
		fmt.Sprintf("Unknown HTTP code: %d", out.StatusCode), info)
}

// ServerText decodes a response body as ASCII, dropping undecodable bytes
// and blank lines.
func ServerText(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	ascii := make([]byte, 0, len(body))
	for _, c := range body {
		if c < 0x80 {
			ascii = append(ascii, c)
		}
	}
	lines := strings.FieldsFunc(string(ascii), func(r rune) bool { return r == '\n' || r == '\r' })
	kept := lines[:0]
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isTimeout(out Outcome) bool {
	if out.Err != nil {
		if errors.Is(out.Err, context.DeadlineExceeded) {
			return true
		}
		var netErr net.Error
		if errors.As(out.Err, &netErr) && netErr.Timeout() {
			return true
		}
	}
	text := strings.ToLower(out.ServerMessage)
	if out.Err != nil {
		text += " " + strings.ToLower(out.Err.Error())
	}
	return strings.Contains(text, "timeout") || strings.Contains(text, "timed out")
}

func errorClass(err error) string {
	if err == nil {
		return "transport"
	}
	return fmt.Sprintf("%T", err)
}
