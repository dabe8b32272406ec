package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gocompare/internal"
	"gocompare/internal/config"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "compare",
		Short: "Batch group comparisons with automatic test selection",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (ERROR, WARN, INFO, DEBUG, TRACE)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newPlanCmd(opts),
		newValidateCmd(opts),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) load() (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, internal.NewLoggerTo(internal.ParseLogLevel(level), os.Stderr), nil
}
