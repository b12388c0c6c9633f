package main

import (
	"github.com/spf13/cobra"
)

func newUsageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show today's character budget and turn totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Usage(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Print(renderUsage(rep))
			return nil
		},
	}
}
