package main

import (
	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show history cache status",
	Long:  "Display the state of the persisted history cache without refreshing it.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, yaml, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		a.service.Held(newContext())
		st := a.service.Status()
		return printResponse(cmd, &st, statusFormat)
	})
}
