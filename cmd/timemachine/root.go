package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/timemachine/internal/timemachine/app"
	"github.com/bdobrica/timemachine/internal/timemachine/config"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	scenario   string
	logLevel   string
}

func newRootCmd(ver string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "timemachine",
		Short: "Talk to a historical figure on a length and speech budget",
		Long: `timemachine answers questions in the voice of a historical figure.

Every reply is sized to the question (a birth date gets a sentence or two,
a moral question gets room to breathe), trimmed when the model overshoots,
and sent to speech synthesis only while the daily budget allows it.

Examples:
  timemachine ask "When were you born?"
  timemachine chat
  timemachine ingest ./knowledge
  timemachine serve
  timemachine usage`,
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file (default timemachine.yaml)")
	root.PersistentFlags().StringVar(&opts.scenario, "scenario", "", "apply a named usage scenario")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	root.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newServeCmd(opts),
		newIngestCmd(opts),
		newUsageCmd(opts),
		newScenariosCmd(),
		newConfigCmd(opts),
	)
	return root
}

// loadConfig reads the configuration. The flags are exported as their
// environment variables so they sit at the top of the usual precedence.
func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.scenario != "" {
		os.Setenv("TIMEMACHINE_SCENARIO", o.scenario)
	}
	if o.logLevel != "" {
		os.Setenv("LOG_LEVEL", o.logLevel)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	observability.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// openApp loads the configuration and builds the application.
func (o *rootOptions) openApp() (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
