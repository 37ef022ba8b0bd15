package main

import (
	"github.com/spf13/cobra"

	"taxhist/internal/history"
)

var disciplineFormat string

var disciplineCmd = &cobra.Command{
	Use:   "discipline <name>",
	Short: "Show the changes touching one discipline",
	Long: `Show the commits whose changes concern a discipline: entries added to or
removed from it, deprecated while in it, or modified in a way that touches it.
Discipline names are matched exactly.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscipline,
}

func init() {
	disciplineCmd.Flags().StringVar(&disciplineFormat, "format", "human", "Output format (json, yaml, human)")
	rootCmd.AddCommand(disciplineCmd)
}

func runDiscipline(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		res, err := a.history(newContext(), false)
		if err != nil {
			return err
		}
		entries := history.FilterByDiscipline(res.Entries, args[0])
		return printResponse(cmd, historyFromResult(args[0], res, entries), disciplineFormat)
	})
}
