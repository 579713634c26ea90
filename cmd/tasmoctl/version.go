package main

import (
	"fmt"

	"github.com/northlane/tasmoctl"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tasmoctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmdOutput, tasmoctl.Version)
	},
}
