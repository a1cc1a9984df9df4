package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	configPath string
	output     string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Local-first notes that sync across your devices",
	Long: `notesync keeps your notes in a database on this device and works fully
offline. Edits are queued and pushed to the notes server when you sync, and
changes from your other devices are merged field by field.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			return
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			fatal("Failed to create logger", err)
		}
		logger = l
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $HOME/.notesync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
}
