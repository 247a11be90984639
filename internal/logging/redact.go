// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces the value of every redacted field.
const Redaction = "***"

// Separator terminates key=value pairs embedded in log messages.
const Separator = ";"

// PIIFields are the attribute keys whose values never reach log output.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// FilterDatum replaces the value of each field=value<separator> pair in message.
func FilterDatum(fields []string, redaction, message, separator string) string {
	for _, field := range fields {
		re := regexp.MustCompile(regexp.QuoteMeta(field) + `=(.*?)` + regexp.QuoteMeta(separator))
		message = re.ReplaceAllLiteralString(message, field+"="+redaction+separator)
	}
	return message
}

// redactingHandler masks PII attributes and key=value; pairs in messages.
type redactingHandler struct {
	handler slog.Handler
	fields  map[string]struct{}
	ordered []string
}

// NewRedactingHandler wraps h so that attributes named in fields are logged as Redaction.
// Keys match case-insensitively and are checked inside groups too.
func NewRedactingHandler(h slog.Handler, fields []string) slog.Handler {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &redactingHandler{handler: h, fields: set, ordered: fields}
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, FilterDatum(h.ordered, Redaction, r.Message, Separator), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, out)
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &redactingHandler{handler: h.handler.WithAttrs(redacted), fields: h.fields, ordered: h.ordered}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{handler: h.handler.WithGroup(name), fields: h.fields, ordered: h.ordered}
}

func (h *redactingHandler) redact(a slog.Attr) slog.Attr {
	if _, ok := h.fields[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redaction)
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}
	group := v.Group()
	redacted := make([]any, len(group))
	for i, ga := range group {
		redacted[i] = h.redact(ga)
	}
	return slog.Group(a.Key, redacted...)
}
