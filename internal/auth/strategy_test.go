// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
)

// fakeRequest is a map-backed auth.Request.
type fakeRequest struct {
	headers map[string]string
	cookies map[string]string
}

func (r *fakeRequest) Header(name string) string {
	return r.headers[name]
}

func (r *fakeRequest) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

func withHeader(value string) *fakeRequest {
	return &fakeRequest{headers: map[string]string{auth.AuthorizationHeader: value}}
}

func withCookie(name, value string) *fakeRequest {
	return &fakeRequest{cookies: map[string]string{name: value}}
}

func TestRequireAuth(t *testing.T) {
	exempt := []string{"/api/v1/status/", "/api/v1/stat*", "/api/v1/unauthorized/"}

	tests := []struct {
		name   string
		path   string
		exempt []string
		want   bool
	}{
		{name: "empty path", path: "", exempt: exempt, want: true},
		{name: "nil exemptions", path: "/api/v1/users", exempt: nil, want: true},
		{name: "empty exemptions", path: "/api/v1/users", exempt: []string{}, want: true},
		{name: "exact match", path: "/api/v1/unauthorized/", exempt: exempt, want: false},
		{name: "match after slash normalization", path: "/api/v1/unauthorized", exempt: exempt, want: false},
		{name: "wildcard prefix", path: "/api/v1/stats", exempt: exempt, want: false},
		{name: "wildcard prefix deeper", path: "/api/v1/status/extra", exempt: exempt, want: false},
		{name: "not exempt", path: "/api/v1/users", exempt: exempt, want: true},
		{name: "literal is not a prefix", path: "/api/v1/unauthorized/more", exempt: exempt, want: true},
		{name: "glob metacharacters are literal", path: "/a/b", exempt: []string{"/a/?*"}, want: true},
		{name: "glob metacharacters match literally", path: "/a/?x", exempt: []string{"/a/?*"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.RequireAuth(tt.path, tt.exempt))
			assert.Equal(t, tt.want, auth.NoAuth{}.RequireAuth(tt.path, tt.exempt))
		})
	}
}

func TestExemptions_Match(t *testing.T) {
	e, err := auth.NewExemptions([]string{"/public/*", "/health/", ""})
	require.NoError(t, err)

	assert.True(t, e.Match("/public/img.png"))
	assert.True(t, e.Match("/health"))
	assert.False(t, e.Match("/private"))
	assert.False(t, e.Match(""))

	var nilExemptions *auth.Exemptions
	assert.False(t, nilExemptions.Match("/health"))
}

func TestNoAuth(t *testing.T) {
	var a auth.NoAuth

	t.Run("authorization header of nil request is empty", func(t *testing.T) {
		assert.Empty(t, a.AuthorizationHeader(nil))
	})

	t.Run("authorization header is read from request", func(t *testing.T) {
		assert.Equal(t, "Basic abc", a.AuthorizationHeader(withHeader("Basic abc")))
	})

	t.Run("current user is never resolved", func(t *testing.T) {
		p, err := a.CurrentUser(context.Background(), withHeader("Basic abc"))
		assert.Nil(t, p)
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}
