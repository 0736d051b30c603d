package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the broker version printed by the version command.
const Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the broker version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("vssbroker " + Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
