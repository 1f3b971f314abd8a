// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package logging configures the structured logger of the recurring event
// service and carries request-scoped log attributes through a context.
package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	slogotel "github.com/remychantenay/slog-otel"
)

type ctxKey string

// ErrKey is the attribute key errors are logged under.
const ErrKey = "error"

const (
	slogFields      ctxKey = "slog_fields"
	logLevelDefault        = slog.LevelDebug

	// Set on errors an operator has to act on, such as an unreachable store.
	priorityCritical = "critical"
)

// Config is the logger configuration.
type Config struct {
	Level     slog.Level
	AddSource bool
	// Text selects the logfmt-style text handler instead of JSON.
	Text bool
}

// ConfigFromEnv reads LOG_LEVEL, LOG_ADD_SOURCE and LOG_FORMAT. Unparseable
// values keep their defaults.
func ConfigFromEnv() Config {
	cfg := Config{Level: logLevelDefault}

	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(raw)); err == nil {
			cfg.Level = level
		}
	}
	cfg.AddSource, _ = strconv.ParseBool(os.Getenv("LOG_ADD_SOURCE"))
	cfg.Text = strings.EqualFold(os.Getenv("LOG_FORMAT"), "text")

	return cfg
}

// contextHandler adds the attributes stored by AppendCtx to every record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// NewHandler builds the service handler writing to w. Records get the
// context attributes and the trace_id/span_id of the active span.
func NewHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var base slog.Handler
	if cfg.Text {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return contextHandler{slogotel.OtelHandler{Next: base}}
}

// InitStructureLogConfig installs the service handler as the slog default.
func InitStructureLogConfig() slog.Handler {
	cfg := ConfigFromEnv()
	h := NewHandler(os.Stdout, cfg)

	log.SetFlags(log.Llongfile)
	slog.SetDefault(slog.New(h))

	slog.Info("log config",
		"level", cfg.Level.String(),
		"add_source", cfg.AddSource,
		"text", cfg.Text,
	)
	return h
}

// AppendCtx returns a context whose log records carry attr in addition to the
// attributes already stored in parent. parent is never modified.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	existing, _ := parent.Value(slogFields).([]slog.Attr)
	attrs := make([]slog.Attr, 0, len(existing)+1)
	attrs = append(attrs, existing...)
	attrs = append(attrs, attr)
	return context.WithValue(parent, slogFields, attrs)
}

// Priority classifies an error record.
func Priority(level string) slog.Attr {
	return slog.String("priority", level)
}

// PriorityCritical marks a record for escalation.
func PriorityCritical() slog.Attr {
	return Priority(priorityCritical)
}
