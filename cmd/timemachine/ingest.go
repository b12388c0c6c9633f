package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Load knowledge files or directories into the store",
		Long: `Splits .txt, .md and .json files into overlapping chunks and stores them
for retrieval. Re-ingesting a file replaces its chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			for _, path := range args {
				n, err := a.Ingest(ctx, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				cmd.Printf("%s: %d chunks\n", path, n)
			}
			total, err := a.KnowledgeCount(ctx)
			if err != nil {
				return err
			}
			cmd.Println(headerStyle.Render(fmt.Sprintf("knowledge store: %d chunks", total)))
			return nil
		},
	}
}
