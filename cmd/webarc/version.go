package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags; empty values fall back to the module's
// embedded build info.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildDetails resolves version, commit, and build date, preferring ldflags
// values over what the Go toolchain embedded.
func buildDetails() (v, c, d string) {
	v, c, d = version, commit, date

	info, ok := debug.ReadBuildInfo()
	if !ok {
		info = &debug.BuildInfo{}
	}
	if v == "" {
		v = info.Main.Version
	}
	if v == "" {
		v = "(devel)"
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if c == "" {
				c = setting.Value
				if len(c) > 7 {
					c = c[:7]
				}
			}
		case "vcs.time":
			if d == "" {
				d = setting.Value
			}
		}
	}
	if c == "" {
		c = "unknown"
	}
	if d == "" {
		d = "unknown"
	}
	return v, c, d
}

// getVersion returns the version string for the root command.
func getVersion() string {
	v, _, _ := buildDetails()
	return v
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of webarc.`,
		Run: func(cmd *cobra.Command, _ []string) {
			v, c, d := buildDetails()
			fmt.Fprintf(cmd.OutOrStdout(), "webarc version %s\n", v)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", c)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", d)
		},
	}
}
