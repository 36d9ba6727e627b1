// Package cmd implements the gagbot CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gagbot",
	Short: "Grow a Garden stock notifier for Telegram",
	Long:  "Polls the Grow a Garden stock feed, posts to a Telegram chat when tracked items change, and adapts the poll rate to the feed's quota headers.",
	// no subcommand means run
	RunE:          runBot,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./config.json", "config file path (JSON or YAML)")
	rootCmd.AddCommand(runCmd, fetchCmd, versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
