package main

import (
	"github.com/spf13/cobra"

	"github.com/tapsdmc/fdsnclient/internal/client"
)

type stationFlags struct {
	Network   string
	Station   string
	Location  string
	Channel   string
	StartTime string
	EndTime   string
	Level     string
	Format    string
	Params    []string
	Output    string
}

func newStationCmd(a *app) *cobra.Command {
	f := &stationFlags{}

	cmd := &cobra.Command{
		Use:   "station",
		Short: "Fetch station metadata",
		Example: `  fdsn station --network TW --station ANMO --level channel
  fdsn station --param net=TW --param minlat=21.5 --param maxlat=25.5 -o stations.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query(cmd)
			if err != nil {
				return err
			}
			q.Output = a.output(f.Output)

			c, err := a.client()
			if err != nil {
				return err
			}
			_, err = c.Stations(cmd.Context(), q)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.Network, "network", "n", "", "Network codes, comma separated, wildcards allowed")
	flags.StringVarP(&f.Station, "station", "s", "", "Station codes")
	flags.StringVarP(&f.Location, "location", "l", "", "Location codes; an empty value selects blank codes, sent as --")
	flags.StringVarP(&f.Channel, "channel", "C", "", "Channel codes")
	flags.StringVar(&f.StartTime, "starttime", "", "Limit to metadata on or after this time")
	flags.StringVar(&f.EndTime, "endtime", "", "Limit to metadata on or before this time")
	flags.Float64("minlatitude", 0, "Southern boundary")
	flags.Float64("maxlatitude", 0, "Northern boundary")
	flags.Float64("minlongitude", 0, "Western boundary")
	flags.Float64("maxlongitude", 0, "Eastern boundary")
	flags.Float64("latitude", 0, "Latitude of the radial search centre")
	flags.Float64("longitude", 0, "Longitude of the radial search centre")
	flags.Float64("minradius", 0, "Minimum distance from the centre in degrees")
	flags.Float64("maxradius", 0, "Maximum distance from the centre in degrees")
	flags.StringVar(&f.Level, "level", "", "network, station, channel or response")
	flags.Bool("includerestricted", true, "Include restricted stations")
	flags.Bool("includeavailability", false, "Include data availability")
	flags.Bool("matchtimeseries", false, "Only return metadata with matching time series")
	flags.StringVar(&f.Format, "format", "", "xml or text")
	flags.StringArrayVarP(&f.Params, "param", "p", nil, "Extra parameter as key=value, may be repeated")
	flags.StringVarP(&f.Output, "output", "o", "", "Write the response to this file instead of stdout")

	return cmd
}

func (f *stationFlags) query(cmd *cobra.Command) (client.StationQuery, error) {
	start, err := parseTime("starttime", f.StartTime)
	if err != nil {
		return client.StationQuery{}, err
	}
	end, err := parseTime("endtime", f.EndTime)
	if err != nil {
		return client.StationQuery{}, err
	}
	extra, err := parseParams(f.Params)
	if err != nil {
		return client.StationQuery{}, err
	}
	location, err := locationArg(cmd, f.Location, extra)
	if err != nil {
		return client.StationQuery{}, err
	}

	return client.StationQuery{
		StartTime:           start,
		EndTime:             end,
		Network:             f.Network,
		Station:             f.Station,
		Location:            location,
		Channel:             f.Channel,
		MinLatitude:         floatFlag(cmd, "minlatitude"),
		MaxLatitude:         floatFlag(cmd, "maxlatitude"),
		MinLongitude:        floatFlag(cmd, "minlongitude"),
		MaxLongitude:        floatFlag(cmd, "maxlongitude"),
		Latitude:            floatFlag(cmd, "latitude"),
		Longitude:           floatFlag(cmd, "longitude"),
		MinRadius:           floatFlag(cmd, "minradius"),
		MaxRadius:           floatFlag(cmd, "maxradius"),
		Level:               f.Level,
		IncludeRestricted:   boolFlag(cmd, "includerestricted"),
		IncludeAvailability: boolFlag(cmd, "includeavailability"),
		MatchTimeSeries:     boolFlag(cmd, "matchtimeseries"),
		Format:              f.Format,
		Extra:               extra,
	}, nil
}
