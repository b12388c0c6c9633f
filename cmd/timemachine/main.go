// Timemachine is the command-line front end of the conversational time
// machine: a historical persona whose replies are sized to a length and
// speech-synthesis budget.
//
// Configuration comes from timemachine.yaml (or --config), .env files and
// the environment. The only required variable is LLM_API_KEY; see
// internal/timemachine/config for the rest.
package main

import (
	"fmt"
	"os"

	"github.com/bdobrica/timemachine/common/version"
)

func main() {
	if err := newRootCmd(version.String()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
