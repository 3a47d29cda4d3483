package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/webarc.yaml
var policyTemplate embed.FS

// policyFileName is the default policy file name.
const policyFileName = "webarc.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new webarc crawl policy file",
		Long: `Initialize creates a new webarc.yaml crawl policy file in the current
directory.

The generated file includes:
- Commented defaults for depth, workers, timeouts, and politeness
- Examples for host allow-lists and URL exclusion patterns
- A commented example of a traversal-policy script

Examples:
  # Create webarc.yaml in current directory
  webarc init

  # Create the policy file at a specific path
  webarc init -o policies/news.yaml

  # Force overwrite existing file
  webarc init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", policyFileName,
		"Output file path for the policy")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing policy file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("policy file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := policyTemplate.ReadFile("templates/webarc.yaml")
	if err != nil {
		return fmt.Errorf("failed to read policy template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}

	fmt.Printf("Created policy file: %s\n", outputPath)
	fmt.Println("\nEdit this file to configure crawl settings such as:")
	fmt.Println("  - Depth, worker count, and per-host politeness")
	fmt.Println("  - Host allow-lists and URL exclusion patterns")
	fmt.Println("  - Traversal-policy scripts")

	return nil
}
