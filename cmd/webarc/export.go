package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yomogi/webarc/internal/export"
	"github.com/yomogi/webarc/internal/log"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Pack an archive directory into a portable indexed bundle",
		Long: `Export scans a crawl's archive directory, builds a sorted lookup index and
a page listing, and packs everything into a single portable bundle file.
The record stream is stored inside the bundle without recompression, so the
index offsets remain valid and replay tools can seek directly to any page.

A torn final record left by an interrupted crawl is skipped with a warning;
everything durably written before it is exported.

Examples:
  # Pack ./archive into site.wacz
  webarc export -o site.wacz

  # Pack a specific archive directory
  webarc export -i ./crawls/example -o example.wacz`,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("input", "i", "archive",
		"Archive directory to pack")
	cmd.Flags().StringP("output", "o", "",
		"Bundle file to write (required)")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(err)
	}

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	archiveDir, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}

	bundlePath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(bundlePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	fmt.Printf("Packing %s into %s...\n", archiveDir, bundlePath)
	startTime := time.Now()

	packer := export.NewPacker("webarc "+getVersion(), logger)
	manifest, err := packer.Pack(ctx, archiveDir, bundlePath)
	if err != nil {
		// Remove the partial bundle so a failed export never leaves a
		// file that looks complete.
		_ = os.Remove(bundlePath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("export failed: %w", err)
	}

	elapsed := time.Since(startTime).Round(time.Millisecond)
	fmt.Printf("Bundle written: %s (%d files, %s)\n",
		bundlePath, len(manifest.Resources), elapsed)

	return nil
}
