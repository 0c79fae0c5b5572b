// Package cli implements the voicehook command line.
package cli

import (
	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voicehook",
		Short: "voicehook: webhook server for voice assistant tool calls",
		Long: "voicehook answers the callbacks a voice assistant platform sends during a call.\n" +
			"Tools registered while answering assistant-request are invoked by later\n" +
			"function-call and tool-calls callbacks for the same call.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			if err := config.LoadEnvFiles(envFile, ".env", paths.EnvFile); err != nil {
				return err
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.voicehook/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "extra dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCachesCmd())
	cmd.AddCommand(newReportsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
