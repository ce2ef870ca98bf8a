package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Exchange the configured username and password for a token pair",
		Long: `Exchange the configured username and password for a token pair.

The tokens are printed as JSON and not stored. Pass them to later calls through
FDSN_ACCESS_TOKEN and FDSN_REFRESH_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.Login(cmd.Context()); err != nil {
				return err
			}
			a.log.Info().Str("base_url", c.BaseURL()).Msg("logged in")

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(c.Tokens())
		},
	}
}
