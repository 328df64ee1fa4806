package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	odata "github.com/nlstn/go-odata-client"
)

// countedResult is printed for collection reads with --count.
type countedResult struct {
	Count    *int64        `json:"count,omitempty"`
	NextLink string        `json:"nextLink,omitempty"`
	Value    []odata.Entry `json:"value"`
}

func newGetCmd(client *clientOptions) *cobra.Command {
	chain := &chainOptions{}
	var all bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Run a query and print the result as JSON",
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
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var result interface{}
			switch {
			case chain.keyed():
				result, err = command.FindEntry(ctx)
			case all:
				result, err = command.FindAllEntries(ctx)
			case chain.count:
				var ann odata.Annotations
				entries, findErr := command.FindEntries(ctx, &ann)
				out := countedResult{Count: ann.Count, Value: entries}
				if ann.NextPageLink != nil {
					out.NextLink = ann.NextPageLink.String()
				}
				result, err = out, findErr
			default:
				result, err = command.FindEntries(ctx, nil)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	chain.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "follow next links and print every page")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
