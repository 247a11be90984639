// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/pkg/errutil"
)

type fakePurger struct {
	lifetime time.Duration
	n        int64
	err      error
	called   bool
}

func (f *fakePurger) DeleteExpired(_ context.Context, lifetime time.Duration) (int64, error) {
	f.called = true
	f.lifetime = lifetime
	return f.n, f.err
}

func TestPurgeSessions(t *testing.T) {
	t.Run("deletes sessions older than the lifetime", func(t *testing.T) {
		cmd := &cobra.Command{}
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		purger := &fakePurger{n: 3}

		require.NoError(t, purgeSessions(context.Background(), cmd, purger, time.Hour))
		assert.Equal(t, time.Hour, purger.lifetime)
		assert.Contains(t, out.String(), "Purged 3 expired sessions")
	})

	t.Run("zero lifetime still sweeps recorded durations", func(t *testing.T) {
		cmd := &cobra.Command{}
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		purger := &fakePurger{n: 1}

		require.NoError(t, purgeSessions(context.Background(), cmd, purger, 0))
		assert.True(t, purger.called)
		assert.Zero(t, purger.lifetime)
		assert.Contains(t, out.String(), "Purged 1 expired sessions")
	})

	t.Run("store failure", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetOut(new(bytes.Buffer))
		purger := &fakePurger{err: errors.New("connection refused")}

		err := purgeSessions(context.Background(), cmd, purger, time.Hour)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_PURGE_FAILED")
	})
}

func TestPurgeSessionsCommand_NoDatabaseURL(t *testing.T) {
	isolateEnv(t)

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"purge-sessions"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
