// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges samber/oops errors to slog and to tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs flattens err into slog key/value pairs. Coded errors contribute their
// code and merged context next to the message.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if fields := oopsErr.Context(); len(fields) > 0 {
		attrs = append(attrs, "context", fields)
	}
	return attrs
}

// LogError logs err at error level under msg.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError for callers holding a request context, so
// handlers that read trace ids from ctx can attach them.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}
