package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tequio/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tequio version %s\n", version.Get())
	},
}
