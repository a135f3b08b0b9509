package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "gitpulse",
		Short: "Unified GitHub and GitLab activity feed",
		Long: `Polls GitHub notifications and GitLab events, merges them into one
deduplicated feed, and ranks each entry by your configured priority rules.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Add list flags to the root so `gitpulse` and `gitpulse list` work
	// identically.
	addListFlags(rootCmd, opts)

	rootCmd.AddCommand(NewCmdList(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}
