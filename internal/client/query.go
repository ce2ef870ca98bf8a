package client

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
)

// StationQuery selects station metadata. Zero-valued fields are not sent.
// Extra carries further parameters by name; it may use the short aliases
// (net, sta, loc, cha, start, end, minlat, ...) and may hold an empty string,
// e.g. {"location": ""} to select blank location codes.
type StationQuery struct {
	StartTime   time.Time
	EndTime     time.Time
	StartBefore time.Time
	StartAfter  time.Time
	EndBefore   time.Time
	EndAfter    time.Time

	Network  string
	Station  string
	Location string
	Channel  string

	MinLatitude  *float64
	MaxLatitude  *float64
	MinLongitude *float64
	MaxLongitude *float64
	Latitude     *float64
	Longitude    *float64
	MinRadius    *float64
	MaxRadius    *float64

	// Level is one of network, station, channel or response.
	Level string

	IncludeRestricted   *bool
	IncludeAvailability *bool
	UpdatedAfter        time.Time
	MatchTimeSeries     *bool
	Format              string

	Extra fdsnws.Args

	// Output receives the raw response instead of the inventory reader.
	Output Output
}

// Args returns the explicit arguments of the query.
func (q StationQuery) Args() fdsnws.Args {
	return fdsnws.Args{
		"starttime":           q.StartTime,
		"endtime":             q.EndTime,
		"startbefore":         q.StartBefore,
		"startafter":          q.StartAfter,
		"endbefore":           q.EndBefore,
		"endafter":            q.EndAfter,
		"network":             q.Network,
		"station":             q.Station,
		"location":            q.Location,
		"channel":             q.Channel,
		"minlatitude":         q.MinLatitude,
		"maxlatitude":         q.MaxLatitude,
		"minlongitude":        q.MinLongitude,
		"maxlongitude":        q.MaxLongitude,
		"latitude":            q.Latitude,
		"longitude":           q.Longitude,
		"minradius":           q.MinRadius,
		"maxradius":           q.MaxRadius,
		"level":               q.Level,
		"includerestricted":   q.IncludeRestricted,
		"includeavailability": q.IncludeAvailability,
		"updatedafter":        q.UpdatedAfter,
		"matchtimeseries":     q.MatchTimeSeries,
		"format":              q.Format,
	}
}

// WaveformQuery selects waveform data. StartTime and EndTime are required,
// either here or through Extra.
type WaveformQuery struct {
	Network  string
	Station  string
	Location string
	Channel  string

	StartTime time.Time
	EndTime   time.Time

	// Quality is one of D, R, Q, M or B.
	Quality       string
	MinimumLength *float64
	LongestOnly   *bool

	Extra fdsnws.Args

	// AttachResponse fetches the instrument responses of the selection and
	// hands them to the response attacher together with the waveforms.
	AttachResponse bool

	// Output receives the raw response instead of the waveform reader.
	Output Output
}

// Args returns the explicit arguments of the query.
func (q WaveformQuery) Args() fdsnws.Args {
	return fdsnws.Args{
		"network":       q.Network,
		"station":       q.Station,
		"location":      q.Location,
		"channel":       q.Channel,
		"starttime":     q.StartTime,
		"endtime":       q.EndTime,
		"quality":       q.Quality,
		"minimumlength": q.MinimumLength,
		"longestonly":   q.LongestOnly,
	}
}

// Output is the destination of a raw response: a file path or a writer.
// The zero Output hands the response to a reader instead.
type Output struct {
	Path   string
	Writer io.Writer
}

// ToFile writes the response to path.
func ToFile(path string) Output { return Output{Path: path} }

// ToWriter writes the response to w.
func ToWriter(w io.Writer) Output { return Output{Writer: w} }

// IsZero reports whether no destination is set.
func (o Output) IsZero() bool {
	return o.Path == "" && o.Writer == nil
}

func (o Output) write(data []byte) error {
	if o.Writer != nil {
		if _, err := o.Writer.Write(data); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(o.Path, data, 0o644); err != nil { //nolint:gosec // data files are meant to be readable
		return fmt.Errorf("write response to %s: %w", o.Path, err)
	}
	return nil
}
