package main

import (
	"fmt"

	"github.com/MostlyMax/plumber-queue/internal/version"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of plumberctl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("plumberctl %s\n", version.Version)
	},
}
