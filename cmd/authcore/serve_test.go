// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/config"
)

// syncBuffer guards a bytes.Buffer shared with the serving goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunServe_ServesUntilCancelled(t *testing.T) {
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	cfg := memoryConfig(config.StrategySession)
	cfg.ExemptPaths = config.DefaultExemptPaths

	cmd := &cobra.Command{}
	out := &syncBuffer{}
	cmd.SetOut(out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cmd, cfg, nil) }()

	var addr string
	require.Eventually(t, func() bool {
		line := out.String()
		if i := strings.Index(line, "listening on "); i >= 0 {
			addr = strings.TrimSpace(line[i+len("listening on "):])
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}

func TestRunServe_ListenFailure(t *testing.T) {
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	cfg := memoryConfig(config.StrategySession)
	cfg.ListenAddr = "127.0.0.1:-1"

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	err := runServe(context.Background(), cmd, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
