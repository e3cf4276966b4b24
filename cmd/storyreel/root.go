package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	root := &cobra.Command{
		Use:   "storyreel",
		Short: "Turn timestamped scripts into assembled videos",
		Long: "storyreel parses a timestamped script, generates narration, visuals, and\n" +
			"on-screen text for every scene, and assembles them into one video.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newGenerateCommand(ctx),
		newTimelineCommand(ctx),
		newStatusCommand(ctx),
		newJobsCommand(ctx),
		newCancelCommand(ctx),
		newCleanupCommand(ctx),
		newDepsCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
