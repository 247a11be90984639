// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode checks that err is coded with code. oops reports the
// innermost code, so wrap plain sentinels when the outer code matters.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext checks that err carries key=value in its merged context.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	fields := oopsErr.Context()
	if assert.Contains(t, fields, key) {
		assert.Equal(t, value, fields[key])
	}
}

// AssertCoded checks both the code and the sentinel err wraps, the pair every
// auth failure path is specified by.
func AssertCoded(t testing.TB, err error, code string, sentinel error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	AssertErrorCode(t, err, code)
}
