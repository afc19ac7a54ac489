package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/furrow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of furrow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "furrow version %s\n", strings.TrimSpace(furrow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
