package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of latexforge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("latexforge %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
