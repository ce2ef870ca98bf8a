package main

import (
	"github.com/spf13/cobra"

	"github.com/tapsdmc/fdsnclient/internal/client"
)

type dataselectFlags struct {
	Network   string
	Station   string
	Location  string
	Channel   string
	StartTime string
	EndTime   string
	Quality   string
	Params    []string
	Output    string
}

func newDataselectCmd(a *app) *cobra.Command {
	f := &dataselectFlags{}

	cmd := &cobra.Command{
		Use:   "dataselect",
		Short: "Fetch waveform data as miniSEED",
		Long: `Fetch waveform data as miniSEED.

When a username and password or tokens are configured the request goes to the
authenticated queryauth resource. The access token is verified first and
refreshed once if the datacenter no longer accepts it.`,
		Example: `  fdsn dataselect -n TW -s ANMO -C BHZ --starttime 2020-01-01 --endtime 2020-01-01T01:00:00 -o anmo.mseed`,
		Args:    cobra.NoArgs,
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
			_, err = c.Waveforms(cmd.Context(), q)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.Network, "network", "n", "", "Network codes, comma separated, wildcards allowed")
	flags.StringVarP(&f.Station, "station", "s", "", "Station codes")
	flags.StringVarP(&f.Location, "location", "l", "", "Location codes; an empty value selects blank codes, sent as --")
	flags.StringVarP(&f.Channel, "channel", "C", "", "Channel codes")
	flags.StringVar(&f.StartTime, "starttime", "", "Start of the time window (required)")
	flags.StringVar(&f.EndTime, "endtime", "", "End of the time window (required)")
	flags.StringVar(&f.Quality, "quality", "", "Quality code: D, R, Q, M or B")
	flags.Float64("minimumlength", 0, "Minimum segment length in seconds")
	flags.Bool("longestonly", false, "Only return the longest continuous segment per channel")
	flags.StringArrayVarP(&f.Params, "param", "p", nil, "Extra parameter as key=value, may be repeated")
	flags.StringVarP(&f.Output, "output", "o", "", "Write the response to this file instead of stdout")

	return cmd
}

func (f *dataselectFlags) query(cmd *cobra.Command) (client.WaveformQuery, error) {
	start, err := parseTime("starttime", f.StartTime)
	if err != nil {
		return client.WaveformQuery{}, err
	}
	end, err := parseTime("endtime", f.EndTime)
	if err != nil {
		return client.WaveformQuery{}, err
	}
	extra, err := parseParams(f.Params)
	if err != nil {
		return client.WaveformQuery{}, err
	}
	location, err := locationArg(cmd, f.Location, extra)
	if err != nil {
		return client.WaveformQuery{}, err
	}

	return client.WaveformQuery{
		Network:       f.Network,
		Station:       f.Station,
		Location:      location,
		Channel:       f.Channel,
		StartTime:     start,
		EndTime:       end,
		Quality:       f.Quality,
		MinimumLength: floatFlag(cmd, "minimumlength"),
		LongestOnly:   boolFlag(cmd, "longestonly"),
		Extra:         extra,
	}, nil
}
