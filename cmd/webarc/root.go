// Package main provides the entry point for the webarc CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webarc.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webarc",
		Short: "Crawl websites into a deduplicated, portable archive",
		Long: `webarc crawls websites breadth-first from one or more seed URLs and stores
every fetched page in a single append-only compressed archive. Pages with
byte-identical content are stored once; later copies become lightweight
revisit entries pointing at the original.

Traversal can be customized with external policy scripts that decide which
links to follow and which pages to keep. An archive directory can later be
packed into a portable, indexed bundle for replay tools.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewArchiveCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
