package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cprwiz",
	Short: "Guided authoring for Context-Purpose-Results documents",
	Long: `cprwiz guides an author through writing a CPR document: a Context
(the mindset, 1-5 words), a Purpose ("To [goal] by [how] so that [impact]")
and a list of past-tense Results.

Each section is checked by deterministic rules and an LLM rubric, and can
only be locked once it passes. Sections are written in pathway order:
cpr (Context, Purpose, Results) or rpc (Results, Purpose, Context).

Run 'cprwiz serve' for the JSON API or 'cprwiz wizard' for the terminal
wizard. Both share the same database.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
