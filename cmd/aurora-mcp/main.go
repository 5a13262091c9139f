package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KotDath/aurora-mcp/cli"
)

// Set via ldflags at build time.
var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aurora-mcp",
	Short: "Demonstration tool-invocation protocol server",
	Long:  "aurora-mcp exposes a suite of schema-described demonstration tools over stdio, HTTP, and SSE transports.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("aurora-mcp version %s\n", version))

	rootCmd.AddCommand(cli.NewServeCmd())
}
