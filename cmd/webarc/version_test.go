package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildDetails(t *testing.T) {
	t.Parallel()

	v, c, d := buildDetails()
	// Each part should resolve to something (ldflags, build info, or the
	// documented fallback).
	if v == "" {
		t.Error("version resolved to empty string")
	}
	if c == "" {
		t.Error("commit resolved to empty string")
	}
	if d == "" {
		t.Error("build date resolved to empty string")
	}
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("getVersion() returned empty string")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()

	t.Run("command has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "version" {
			t.Errorf("expected Use to be 'version', got %q", cmd.Use)
		}
	})

	t.Run("command has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected Short to be non-empty")
		}
	})

	t.Run("command outputs version info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})

		err := cmd.Execute()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "webarc version") {
			t.Errorf("expected output to contain 'webarc version', got %q", output)
		}
		if !strings.Contains(output, "commit:") {
			t.Errorf("expected output to contain 'commit:', got %q", output)
		}
		if !strings.Contains(output, "built:") {
			t.Errorf("expected output to contain 'built:', got %q", output)
		}
	})
}
