// Package cli implements the hashplane command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hashplane",
	Short: "HashPlane worker agent",
	Long: `hashplane is the HashPlane worker agent.
It binds this machine to the HashPlane coordinator and, while authorized,
mines proof-of-work shares and executes queued inference jobs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
