package fdsnws

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the wire form of timestamps: UTC with microseconds and
// no zone designator.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// timestampInputLayouts are tried in order when parsing textual timestamps.
// Layouts without a zone are interpreted as UTC.
var timestampInputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Value is a parameter value coerced to its declared type.
type Value struct {
	typ ValueType
	s   string
	i   int64
	f   float64
	b   bool
	t   time.Time
}

// StringValue returns a String-typed value.
func StringValue(s string) Value { return Value{typ: TypeString, s: s} }

// IntegerValue returns an Integer-typed value.
func IntegerValue(i int64) Value { return Value{typ: TypeInteger, i: i} }

// FloatValue returns a Float-typed value.
func FloatValue(f float64) Value { return Value{typ: TypeFloat, f: f} }

// BooleanValue returns a Boolean-typed value.
func BooleanValue(b bool) Value { return Value{typ: TypeBoolean, b: b} }

// TimestampValue returns a Timestamp-typed value.
func TimestampValue(t time.Time) Value { return Value{typ: TypeTimestamp, t: t.UTC()} }

// Type returns the declared type of the value.
func (v Value) Type() ValueType { return v.typ }

// Time returns the timestamp held by a Timestamp value.
func (v Value) Time() time.Time { return v.t }

// String serializes the value into the form FDSN servers expect.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeBoolean:
		return strconv.FormatBool(v.b)
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return formatFloat(v.f)
	case TypeTimestamp:
		return formatTimestamp(v.t)
	default:
		return ""
	}
}

// Convert coerces an arbitrary caller value to type t.
func (t ValueType) Convert(in any) (Value, error) {
	in = deref(in)
	if in == nil {
		return Value{}, conversionError(in, t)
	}

	switch t {
	case TypeString:
		return StringValue(toText(in)), nil

	case TypeInteger:
		if b, ok := in.(bool); ok {
			if b {
				return IntegerValue(1), nil
			}
			return IntegerValue(0), nil
		}
		if i, ok := asInt64(in); ok {
			return IntegerValue(i), nil
		}
		if f, ok := asFloat64(in); ok {
			if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
				return Value{}, conversionError(in, t)
			}
			return IntegerValue(int64(f)), nil
		}
		if s, ok := asText(in); ok {
			i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return Value{}, conversionError(in, t)
			}
			return IntegerValue(i), nil
		}

	case TypeFloat:
		if f, ok := asFloat64(in); ok {
			return FloatValue(f), nil
		}
		if i, ok := asInt64(in); ok {
			return FloatValue(float64(i)), nil
		}
		if s, ok := asText(in); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return Value{}, conversionError(in, t)
			}
			return FloatValue(f), nil
		}

	case TypeBoolean:
		if b, ok := in.(bool); ok {
			return BooleanValue(b), nil
		}
		if i, ok := asInt64(in); ok {
			return BooleanValue(i != 0), nil
		}
		if s, ok := asText(in); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return Value{}, conversionError(in, t)
			}
			return BooleanValue(b), nil
		}

	case TypeTimestamp:
		switch x := in.(type) {
		case time.Time:
			return TimestampValue(x), nil
		case bool:
			return Value{}, conversionError(in, t)
		}
		if i, ok := asInt64(in); ok {
			return TimestampValue(time.Unix(i, 0)), nil
		}
		if f, ok := asFloat64(in); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return Value{}, conversionError(in, t)
			}
			sec, frac := math.Modf(f)
			return TimestampValue(time.Unix(int64(sec), int64(math.Round(frac*1e9)))), nil
		}
		if s, ok := asText(in); ok {
			ts, err := ParseTimestamp(s)
			if err != nil {
				return Value{}, conversionError(in, t)
			}
			return TimestampValue(ts), nil
		}
	}

	return Value{}, conversionError(in, t)
}

// ParseTimestamp parses ISO-8601 style timestamp text. Text without a zone is
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampInputLayouts {
		ts, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, lastErr)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Round(time.Microsecond).Format(TimestampLayout)
}

// formatFloat renders f the way a shortest round-trip repr does: integral
// values keep a ".0" suffix and very small or large magnitudes use exponent
// notation.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func conversionError(in any, t ValueType) error {
	return newError(KindTypeConversion, 0,
		fmt.Sprintf("'%s' could not be converted to type '%s'.", toText(in), t), "")
}

func deref(in any) any {
	switch x := in.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *int:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *bool:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return in
}

// toText renders any value as text, decoding byte strings.
func toText(in any) string {
	switch x := in.(type) {
	case nil:
		return "<nil>"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTimestamp(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	if i, ok := asInt64(in); ok {
		return strconv.FormatInt(i, 10)
	}
	if f, ok := asFloat64(in); ok {
		return formatFloat(f)
	}
	return fmt.Sprint(in)
}

func asText(in any) (string, bool) {
	switch x := in.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}

func asInt64(in any) (int64, bool) {
	switch x := in.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return fitInt64(uint64(x))
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return fitInt64(x)
	}
	return 0, false
}

// fitInt64 reports false for values int64 cannot hold.
func fitInt64(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

func asFloat64(in any) (float64, bool) {
	switch x := in.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
