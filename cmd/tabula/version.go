package main

import (
	"strings"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tabula",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(tabula.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
