package main

import (
	"github.com/spf13/cobra"

	"taxhist/internal/history"
)

var taxonFormat string

var taxonCmd = &cobra.Command{
	Use:   "taxon <name>",
	Short: "Show the history of one taxonomy entry",
	Long: `Show the commits that changed one entry, newest first. The name is matched
exactly, or case-insensitively when no exact match exists. An entry present
in the oldest indexed catalog is shown as added at that commit.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaxon,
}

func init() {
	taxonCmd.Flags().StringVar(&taxonFormat, "format", "human", "Output format (json, yaml, human)")
	rootCmd.AddCommand(taxonCmd)
}

func runTaxon(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		res, err := a.history(newContext(), false)
		if err != nil {
			return err
		}

		subject := args[0]
		var entries []history.HistoryEntry
		if res.Record != nil {
			subject, entries = history.FilterByEntryName(res.Entries, res.Record.InitialCommit, args[0])
		}
		return printResponse(cmd, historyFromResult(subject, res, entries), taxonFormat)
	})
}
