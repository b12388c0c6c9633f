package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// cliTenant charges command-line conversations.
const cliTenant = "cli"

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			res := a.Session(ctx, cliTenant, cliTenant).Respond(ctx, strings.Join(args, " "))
			cmd.Print(renderResult(a.Persona().Name, res))
			return nil
		},
	}
}
