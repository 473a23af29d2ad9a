package cli

import (
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <page.html>",
	Short: "Parse a saved page and print what a run would store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := getApp().Inspect(cmd.Context(), args[0])
		return err
	},
}
