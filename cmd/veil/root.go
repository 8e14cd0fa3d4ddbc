package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "veil",
	Short: "Veil - captcha-masking reverse proxy for conversational AI backends",
	Long: `Veil is a reverse proxy that fronts a third-party conversational AI
backend and masks its bot-detection challenges by replaying captured
browser evidence (HAR records) and driving an external captcha solver.

This process hosts the shared coordination core:
  - Hot-reloadable HAR evidence files, one per challenge surface
  - A pooled cache of MITM-captured preauth credentials
  - Load-balanced outbound HTTP client pools
  - Optional token-bucket rate limiting`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
