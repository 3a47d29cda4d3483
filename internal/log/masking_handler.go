package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// MaskValue replaces sensitive attribute values in log output.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked. These are
// the headers and policy-file fields through which credentials reach the
// crawler.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"access_token":        true,
}

// sensitiveKeywords mask any key containing them, catching variants such as
// "bearer_token" or "session_cookie" without enumerating every spelling.
var sensitiveKeywords = []string{"password", "secret", "token", "auth", "credential", "cookie"}

// MaskingHandler wraps an slog.Handler and masks sensitive attribute values
// before they reach the underlying handler.
//
// Design decision: A handler wrapper rather than a custom logger because it
// integrates with standard slog APIs and works with any underlying handler
// (text, JSON, ...).
type MaskingHandler struct {
	handler slog.Handler
}

// NewMaskingHandler creates a MaskingHandler wrapping handler. If handler is
// nil, slog.Default().Handler() is used.
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added, masked.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr masks a single attribute, recursing into groups.
func (h *MaskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			maskedAttrs[i] = h.maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// NewLogger creates a *slog.Logger writing text records to w through a
// MaskingHandler. Verbose selects debug level; the default is info.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskingHandler(textHandler))
}
