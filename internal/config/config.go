package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These are chosen for polite crawling of
// ordinary web servers; anything can be overridden via flags or the policy
// file.
const (
	// DefaultTimeout is the per-request timeout. 30 seconds is generous for
	// slow origins while still bounding how long a worker can be stuck on a
	// single fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth limits discovery depth from the seeds. Depth 0 means
	// only the seed pages themselves.
	DefaultMaxDepth = 3

	// DefaultWorkers is the number of concurrent fetch workers. Enough to
	// keep several hosts busy without overwhelming the local network stack.
	DefaultWorkers = 8

	// DefaultHostDelay is the minimum time between request starts against
	// the same host. 1 second is conservative and respectful of server
	// resources.
	DefaultHostDelay = 1 * time.Second

	// DefaultHostConcurrency caps in-flight requests per host. Combined with
	// DefaultHostDelay this keeps per-host load predictable even with many
	// workers.
	DefaultHostConcurrency = 2

	// DefaultMaxRetries is how many times a transiently-failing fetch is
	// retried before the URL is marked dead.
	DefaultMaxRetries = 3

	// DefaultMaxRedirects bounds redirect chains. Ten matches the stdlib
	// http.Client default.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize limits the response body size read per fetch.
	// 10MB covers HTML, stylesheets, and most images while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultUserAgent identifies webarc in HTTP requests. A descriptive
	// User-Agent lets operators identify archiver traffic in their logs.
	DefaultUserAgent = "webarc/1.0 (+https://github.com/yomogi/webarc)"

	// DefaultGraceTimeout is how long in-flight fetches may run after a
	// shutdown signal before they are abandoned.
	DefaultGraceTimeout = 15 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "webarc"
)

// Config holds all options for one crawl. It is populated from CLI flags and
// the policy file and passed through the application by dependency injection
// rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs for
// simplicity; the number of options is manageable, and nesting would add
// complexity without significant benefit.
type Config struct {
	// Seeds are the starting URLs. Must contain at least one valid URL.
	Seeds []string

	// OutputDir is the archive directory: the record stream, the catalog,
	// and the crawl summary are written here.
	OutputDir string

	// MaxDepth is the maximum discovery depth. Seeds are depth 0; every link
	// extracted from a depth-D page is enqueued at depth D+1.
	MaxDepth int

	// AllowedHosts restricts the crawl to these hosts. Empty means the hosts
	// of the seed URLs.
	AllowedHosts []string

	// ExcludePatterns are URL path patterns excluded from the crawl,
	// matched with glob syntax (e.g. "/logout*", "*.pdf").
	ExcludePatterns []string

	// Workers is the number of concurrent fetch workers.
	Workers int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// HostDelay is the minimum interval between request starts per host.
	HostDelay time.Duration

	// HostConcurrency caps concurrent in-flight requests per host.
	HostConcurrency int

	// MaxRetries is the retry budget for transient fetch failures.
	MaxRetries int

	// MaxRedirects bounds how many redirects a single fetch may follow.
	MaxRedirects int

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Headers are extra headers added to every request.
	Headers map[string]string

	// Scripts are the traversal-policy scripts, keyed by name. When empty,
	// the built-in HTML link extractor is used.
	Scripts map[string]ScriptConfig

	// GraceTimeout is how long in-flight fetches may finish after
	// cancellation before being abandoned.
	GraceTimeout time.Duration

	// Verbose enables debug-level logging.
	Verbose bool
}

// NewConfig creates a Config with default values. Many defaults are non-zero,
// so relying on zero values would be error-prone; the constructor also
// documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:        DefaultMaxDepth,
		Workers:         DefaultWorkers,
		Timeout:         DefaultTimeout,
		HostDelay:       DefaultHostDelay,
		HostConcurrency: DefaultHostConcurrency,
		MaxRetries:      DefaultMaxRetries,
		MaxRedirects:    DefaultMaxRedirects,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		GraceTimeout:    DefaultGraceTimeout,
	}
}

// XDGDataDir returns the XDG data directory for webarc, the default location
// for the cross-crawl catalog when no output directory is given.
// On Linux: ~/.local/share/webarc
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webarc.
// On Linux: ~/.config/webarc
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration, returning a sentinel error describing
// the first problem found. Called once after flag and policy-file parsing,
// before the crawl enters its running state.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.HostDelay < 0 {
		return ErrInvalidHostDelay
	}
	if c.HostConcurrency <= 0 {
		return ErrInvalidHostConcurrency
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	for name, sc := range c.Scripts {
		if sc.Command == "" {
			return &ScriptConfigError{Name: name, Reason: "command is required"}
		}
	}
	return nil
}
