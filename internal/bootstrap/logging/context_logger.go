// Package logging carries a slog logger and request-scoped attributes
// through context.Context.
package logging

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the immutable logging state stored on a context. Each With* call
// stores a fresh copy so parents never observe attrs added by children.
type scope struct {
	logger *slog.Logger
	attrs  []slog.Attr
}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, s scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger installs logger for every helper below. A nil logger is ignored.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	s := scopeOf(ctx)
	s.logger = logger
	return withScope(ctx, s)
}

// WithAttrs adds attrs to every later log line. A key set again replaces the
// earlier value in place.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	s := scopeOf(ctx)
	s.attrs = overlay(s.attrs, attrs)
	return withScope(ctx, s)
}

// WithRequest tags log lines with the request id and the acting user, when known.
func WithRequest(ctx context.Context, requestID string, userID string) context.Context {
	var attrs []slog.Attr
	if requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	return WithAttrs(ctx, attrs...)
}

// Logger returns the context logger, or slog.Default when none is installed.
func Logger(ctx context.Context) *slog.Logger {
	if logger := scopeOf(ctx).logger; logger != nil {
		return logger
	}
	return slog.Default()
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, msg, attrs)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, msg, attrs)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, msg, attrs)
}

func emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeOf(ctx)
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, overlay(s.attrs, attrs)...)
}

// overlay returns a new slice holding base with extra applied on top.
func overlay(base, extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(base), len(base)+len(extra))
	copy(out, base)
next:
	for _, attr := range extra {
		for i := range out {
			if attr.Key != "" && out[i].Key == attr.Key {
				out[i] = attr
				continue next
			}
		}
		out = append(out, attr)
	}
	return out
}
