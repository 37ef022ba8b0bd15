package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the cached taxonomy history",
	Long:  "Delete the persisted history. The next history request rebuilds it from scratch.",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if err := a.service.Reset(newContext()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted history cache at %s\n", a.store.Path())
		return nil
	})
}
