package main

import (
	"fmt"

	"github.com/spf13/cobra"

	odata "github.com/nlstn/go-odata-client"
)

func newURLCmd(client *clientOptions) *cobra.Command {
	chain := &chainOptions{}
	var relative bool
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the request URL of a query without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.client(cmd)
			if err != nil {
				return err
			}
			command, err := chain.build(cmd, c)
			if err != nil {
				return err
			}
			req, err := command.Request(odata.OpRead)
			if err != nil {
				return err
			}
			if relative {
				fmt.Fprintln(cmd.OutOrStdout(), req.RelativeURL())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), req.URL(c.BaseURL()))
			return nil
		},
	}
	chain.register(cmd)
	cmd.Flags().BoolVar(&relative, "relative", false, "print the URL relative to the service root")
	return cmd
}
