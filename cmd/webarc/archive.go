package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yomogi/webarc/internal/config"
	"github.com/yomogi/webarc/internal/crawl"
	"github.com/yomogi/webarc/internal/log"
)

// NewArchiveCmd creates the archive command.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [seed-url]...",
		Short: "Crawl websites into a deduplicated local archive",
		Long: `Archive crawls breadth-first from the seed URLs and appends every fetched
page to a single compressed archive in the output directory. Pages whose
content was already stored become revisit entries instead of second copies,
and a catalog database next to the archive records every entry for later
export and warm-started re-crawls.

The crawl stays on the seeds' hosts unless a policy file widens the scope.
Interrupting with Ctrl-C drains in-flight pages before exiting, so the
archive stays readable.

Examples:
  # Archive a single site into ./archive
  webarc archive https://example.com/

  # Crawl deeper with more workers
  webarc archive -d 5 -w 16 https://example.com/

  # Apply a crawl policy with traversal scripts
  webarc archive -c policy.yaml https://example.com/

  # Continue a previous crawl (already-stored pages become revisits)
  webarc archive -o ./archive https://example.com/news/`,
		Args: cobra.ArbitraryArgs,
		RunE: runArchiveCmd,
	}

	cmd.Flags().StringP("output", "o", "archive",
		"Archive directory (created if missing)")
	cmd.Flags().StringP("config", "c", "",
		"Crawl policy file (YAML)")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link-discovery depth (seeds are depth 0)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-request timeout")
	cmd.Flags().Duration("host-delay", config.DefaultHostDelay,
		"Minimum interval between requests to the same host")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries,
		"Retry budget for transient fetch failures")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	return cmd
}

// runArchiveCmd executes the archive command.
func runArchiveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)

	// Ctrl-C drains the crawl instead of killing it mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runArchive(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags and the policy file.
// Flag defaults are applied first; a policy file overrides them.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.HostDelay, err = cmd.Flags().GetDuration("host-delay")
	if err != nil {
		return nil, err
	}

	cfg.MaxRetries, err = cmd.Flags().GetInt("max-retries")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	policyPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if policyPath != "" {
		policy, err := config.LoadPolicy(policyPath)
		if err != nil {
			if errors.Is(err, config.ErrPolicyNotFound) {
				return nil, fmt.Errorf("policy file not found: %s", policyPath)
			}
			return nil, fmt.Errorf("failed to load policy file %s: %w", policyPath, err)
		}
		policy.Apply(cfg)
	}

	// Positional arguments are the seed URLs.
	cfg.Seeds = args

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runArchive executes the crawl and prints the outcome summary.
func runArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	supervisor, err := crawl.New(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Archiving %d seed(s) into %s...\n", len(cfg.Seeds), cfg.OutputDir)
	startTime := time.Now()

	snap, err := supervisor.Run(ctx)

	elapsed := time.Since(startTime).Round(time.Millisecond)
	fmt.Printf("\nArchived: %d  Deduplicated: %d  Dropped: %d  Failed: %d  Dead: %d  (%s)\n",
		snap.Archived, snap.Deduped, snap.Dropped, snap.Failed, snap.Dead, elapsed)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("crawl interrupted")
		}
		return err
	}

	fmt.Printf("Archive ready in %s (see report.md for details)\n", cfg.OutputDir)
	return nil
}
