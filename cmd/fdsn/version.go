package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapsdmc/fdsnclient/internal/fdsnws"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "version [service]",
		Short:     "Show the web service versions of the datacenter",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: fdsnws.Services,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				desc, err := c.Describe(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, desc)
				return err
			}

			v, err := c.Version(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, v)
			return err
		},
	}
}
