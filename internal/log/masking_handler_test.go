package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestMaskingHandler tests that sensitive attributes are redacted.
func TestMaskingHandler(t *testing.T) {
	t.Parallel()

	t.Run("masks sensitive keys", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)

		logger.Info("fetched page",
			"url", "https://example.com",
			"Authorization", "Bearer abc123",
			"Cookie", "session=deadbeef",
		)

		out := buf.String()
		if strings.Contains(out, "abc123") || strings.Contains(out, "deadbeef") {
			t.Errorf("sensitive value leaked: %s", out)
		}
		if !strings.Contains(out, MaskValue) {
			t.Errorf("expected mask value in output: %s", out)
		}
		if !strings.Contains(out, "https://example.com") {
			t.Errorf("non-sensitive value should remain: %s", out)
		}
	})

	t.Run("masks keyword-containing keys", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)

		logger.Info("configured", "session_cookie", "value1", "bearer_token", "value2")

		out := buf.String()
		if strings.Contains(out, "value1") || strings.Contains(out, "value2") {
			t.Errorf("sensitive value leaked: %s", out)
		}
	})

	t.Run("masks inside groups", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false)

		logger.Info("request", slog.Group("headers",
			"Accept", "text/html",
			"Authorization", "Basic dXNlcg==",
		))

		out := buf.String()
		if strings.Contains(out, "dXNlcg==") {
			t.Errorf("sensitive value leaked in group: %s", out)
		}
		if !strings.Contains(out, "text/html") {
			t.Errorf("non-sensitive group value should remain: %s", out)
		}
	})

	t.Run("masks attrs added via With", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false).With("api_key", "topsecret")

		logger.Info("hello")

		if strings.Contains(buf.String(), "topsecret") {
			t.Errorf("With attribute leaked: %s", buf.String())
		}
	})

	t.Run("verbose enables debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, true)
		logger.Debug("debug message")
		if !strings.Contains(buf.String(), "debug message") {
			t.Error("expected debug output in verbose mode")
		}

		buf.Reset()
		quiet := NewLogger(&buf, false)
		quiet.Debug("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected no debug output, got %s", buf.String())
		}
	})
}
