// Command odataq builds and runs OData queries from the command line.
//
//	odataq url --url https://services.odata.org/V4/TripPinServiceRW --set People --filter "FirstName eq 'Scott'"
//	odataq get --config services.yaml --profile trippin --set People --top 5 --count
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}
	root := &cobra.Command{
		Use:           "odataq",
		Short:         "Build and run OData queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.register(root)

	root.AddCommand(newURLCmd(opts))
	root.AddCommand(newGetCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "odataq 0.1.0-dev")
		},
	}
}
