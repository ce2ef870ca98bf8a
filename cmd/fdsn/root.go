package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tapsdmc/fdsnclient/internal/client"
	"github.com/tapsdmc/fdsnclient/internal/config"
	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
	"github.com/tapsdmc/fdsnclient/internal/telemetry"
)

// rootFlags are the flags shared by every command.
type rootFlags struct {
	ConfigPath string
	BaseURL    string
	Debug      bool
	Timeout    float64
}

// app carries what the commands need once the root command has run.
type app struct {
	out    io.Writer
	errOut io.Writer
	flags  rootFlags
	opts   []client.Option

	log       zerolog.Logger
	cfg       config.Config
	telemetry *telemetry.Provider
}

func newRootCmd(out, errOut io.Writer, opts ...client.Option) *cobra.Command {
	a := &app{out: out, errOut: errOut, opts: opts}

	cmd := &cobra.Command{
		Use:           "fdsn",
		Short:         "Query the station and dataselect services of an FDSN datacenter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.shutdown()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.flags.ConfigPath,
		"config", "c",
		"",
		"Path to a TOML or YAML config file",
	)
	cmd.PersistentFlags().StringVar(&a.flags.BaseURL,
		"base-url",
		"",
		"Datacenter base URL or shortcut (default TAPS)",
	)
	cmd.PersistentFlags().BoolVar(&a.flags.Debug,
		"debug",
		false,
		"Log every request and response",
	)
	cmd.PersistentFlags().Float64Var(&a.flags.Timeout,
		"timeout",
		0,
		"Seconds to wait for the first response byte",
	)

	cmd.AddCommand(newStationCmd(a))
	cmd.AddCommand(newDataselectCmd(a))
	cmd.AddCommand(newVersionCmd(a))
	cmd.AddCommand(newLoginCmd(a))

	return cmd
}

func (a *app) setup(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.ConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = a.flags.BaseURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSeconds = a.flags.Timeout
	}
	if a.flags.Debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
	a.log.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("base_url", cfg.BaseURL).
		Msg("fdsn starting")

	a.telemetry, err = telemetry.Init(ctx, cfg.TelemetryConfig(Version))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	if cfg.Telemetry.Enabled {
		a.log.Debug().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}
	return nil
}

func (a *app) shutdown() error {
	if a.telemetry == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("failed to shutdown telemetry")
	}
	return nil
}

func (a *app) client() (*client.Client, error) {
	metrics, err := telemetry.NewClientMetrics()
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	opts := append([]client.Option{
		client.WithLogger(a.log),
		client.WithMetrics(metrics),
	}, a.opts...)
	return client.New(a.cfg.Client(), opts...)
}

// output returns the destination of a response: the file given with
// --output, or stdout.
func (a *app) output(path string) client.Output {
	if path == "" || path == "-" {
		return client.ToWriter(a.out)
	}
	return client.ToFile(path)
}

// parseParams turns repeated key=value flags into keyword arguments.
func parseParams(raw []string) (fdsnws.Args, error) {
	args := fdsnws.Args{}
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q is not of the form key=value", kv)
		}
		args[key] = value
	}
	return args, nil
}

// locationArg moves an explicitly given --location into the keyword
// arguments, where an empty value still selects blank location codes.
func locationArg(cmd *cobra.Command, value string, extra fdsnws.Args) (string, error) {
	if !cmd.Flags().Changed("location") {
		return value, nil
	}
	if _, dup := extra["location"]; dup {
		return "", errors.New("--location and --param location both given")
	}
	extra["location"] = value
	return "", nil
}

func parseTime(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := fdsnws.ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// floatFlag returns the value of a float flag, or nil when it was not given.
func floatFlag(cmd *cobra.Command, name string) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64(name)
	return &v
}

// boolFlag returns the value of a bool flag, or nil when it was not given.
func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}
