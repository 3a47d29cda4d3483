package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Package-level sentinel errors rather than fmt.Errorf in
// Validate, so callers can use errors.Is for programmatic handling while the
// messages stay human-readable.
var (
	// ErrNoSeeds is returned when no seed URL is provided.
	ErrNoSeeds = errors.New("no seed URLs: provide at least one seed as an argument")

	// ErrNoOutputDir is returned when the archive output directory is empty.
	ErrNoOutputDir = errors.New("no output directory: use --output")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be >= 0")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidHostDelay is returned when the per-host delay is negative.
	// Use 0 for no politeness delay.
	ErrInvalidHostDelay = errors.New("invalid host delay: must be non-negative")

	// ErrInvalidHostConcurrency is returned when the per-host in-flight cap
	// is not positive.
	ErrInvalidHostConcurrency = errors.New("invalid host concurrency: must be positive")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	// Use 0 to disable retries.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size cap is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrPolicyNotFound is returned when the policy file does not exist.
	ErrPolicyNotFound = errors.New("policy file not found")
)

// ScriptConfigError describes an invalid script entry in the policy file.
type ScriptConfigError struct {
	// Name is the script's key in the policy file.
	Name string

	// Reason describes what is wrong with the entry.
	Reason string
}

// Error implements the error interface.
func (e *ScriptConfigError) Error() string {
	return fmt.Sprintf("script %q: %s", e.Name, e.Reason)
}
