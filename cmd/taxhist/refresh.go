package main

import (
	"github.com/spf13/cobra"
)

var (
	refreshFormat string
	refreshForce  bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the taxonomy history cache",
	Long: `Refresh the cached history.

Without --force, only commits older than the cached watermark are processed
and appended to the cache. With --force, the history is rebuilt from the whole
repository and replaces the cache.`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshFormat, "format", "human", "Output format (json, yaml, human)")
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "Rebuild the full history")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		rec, err := a.service.Refresh(newContext(), refreshForce)
		if err != nil {
			return err
		}
		return printResponse(cmd, &RefreshResponseCLI{
			Forced:             refreshForce,
			Entries:            len(rec.Entries),
			TotalCommits:       rec.TotalCommits,
			CommitsWithChanges: rec.CommitsWithChanges,
			Watermark:          rec.Watermark,
			ProcessingTimeMs:   rec.ProcessingTimeMs,
		}, refreshFormat)
	})
}
