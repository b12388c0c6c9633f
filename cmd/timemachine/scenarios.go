package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/timemachine/internal/timemachine/config"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in usage scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(renderScenarios(config.Scenarios()))
		},
	}
}

func renderScenarios(list []config.Scenario) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Scenarios") + "\n\n")
	for _, s := range list {
		fmt.Fprintf(&sb, "  %-15s %7d chars/day  windows x%.1f  %s\n",
			s.Name, s.MaxDailyChars, s.WindowScale, metaStyle.Render(s.Description))
	}
	return sb.String()
}
