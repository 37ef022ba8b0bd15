package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyFormat  string
	historyRefresh bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the taxonomy change history",
	Long: `Show every commit that changed the taxonomy catalog, newest first, with
the entries it added, removed, deprecated or modified.

The history is served from the cache. With --refresh it is rebuilt from the
whole repository first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (json, yaml, human)")
	historyCmd.Flags().BoolVar(&historyRefresh, "refresh", false, "Rebuild the full history before printing")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		res, err := a.history(newContext(), historyRefresh)
		if err != nil {
			return err
		}
		return printResponse(cmd, historyFromResult("", res, res.Entries), historyFormat)
	})
}

// withApp wires the app for fn and always waits for background work.
func withApp(fn func(a *app) error) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	runErr := fn(a)
	if closeErr := a.Close(); closeErr != nil {
		a.logger.Warn("Error stopping history cache", map[string]interface{}{
			"error": closeErr.Error(),
		})
	}
	return runErr
}

// printResponse formats resp and writes it to the command output.
func printResponse(cmd *cobra.Command, resp interface{}, format string) error {
	output, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

