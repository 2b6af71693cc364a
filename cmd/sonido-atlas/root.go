package main

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-atlas/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var noColor bool

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "sonido-atlas",
		Short:         "Describe audio and cluster track catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// keep stdout for command output
			errOut := cmd.ErrOrStderr()
			logging.SetGlobalLogger(logging.NewWriterLogger(errOut, errOut, !noColor && isTerminal(errOut)))

			if shouldSkipConfig(cmd) {
				return ctx.applyLogLevel("")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.applyLogLevel(cfg.Logging.Level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ./sonido-atlas.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored log output")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newTrainCommand(ctx))
	rootCmd.AddCommand(newPredictCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
