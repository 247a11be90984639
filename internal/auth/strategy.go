// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// AuthorizationHeader is the request header carrying credentials.
const AuthorizationHeader = "Authorization"

// wildcard marks an exemption pattern that matches by prefix.
const wildcard = "*"

// Request is the view of an inbound request the strategies need.
type Request interface {
	// Header returns the named header value, or "" if absent.
	Header(name string) string

	// Cookie returns the named cookie value and whether it was present.
	Cookie(name string) (string, bool)
}

// CookieSetter is the view of an outbound response used to hand out session cookies.
type CookieSetter interface {
	SetCookie(name, value string)
}

// Authenticator resolves requests to principals.
type Authenticator interface {
	// RequireAuth reports whether path needs authentication given the exemption patterns.
	RequireAuth(path string, exempt []string) bool

	// AuthorizationHeader returns the raw Authorization header of r, or "".
	AuthorizationHeader(r Request) string

	// CurrentUser resolves r to a principal.
	// Returns ErrUnauthenticated when r carries no usable credential.
	CurrentUser(ctx context.Context, r Request) (*Principal, error)
}

// NoAuth is the strategy that never authenticates anyone.
// Other strategies embed it for the request helpers.
type NoAuth struct{}

// RequireAuth reports whether path needs authentication. See RequireAuth.
func (NoAuth) RequireAuth(path string, exempt []string) bool {
	return RequireAuth(path, exempt)
}

// AuthorizationHeader returns the Authorization header of r.
func (NoAuth) AuthorizationHeader(r Request) string {
	if r == nil {
		return ""
	}
	return r.Header(AuthorizationHeader)
}

// CurrentUser always returns ErrUnauthenticated.
func (NoAuth) CurrentUser(_ context.Context, _ Request) (*Principal, error) {
	return nil, ErrUnauthenticated
}

// RequireAuth reports whether path needs authentication.
// An empty path or an empty exemption list always requires authentication.
func RequireAuth(path string, exempt []string) bool {
	if path == "" || len(exempt) == 0 {
		return true
	}
	exemptions, err := NewExemptions(exempt)
	if err != nil {
		return true
	}
	return !exemptions.Match(path)
}

// Exemptions is a compiled list of paths that skip authentication.
// Patterns ending in "*" match any path with the preceding prefix; all other
// patterns must match the trailing-slash-normalized path exactly.
type Exemptions struct {
	literals map[string]struct{}
	prefixes []glob.Glob
}

// NewExemptions compiles exemption patterns.
func NewExemptions(patterns []string) (*Exemptions, error) {
	e := &Exemptions{literals: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		e.literals[p] = struct{}{}
		prefix, ok := strings.CutSuffix(p, wildcard)
		if !ok {
			continue
		}
		g, err := glob.Compile(glob.QuoteMeta(prefix) + wildcard)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_EXEMPTION").
				With("pattern", p).
				Wrap(err)
		}
		e.prefixes = append(e.prefixes, g)
	}
	return e, nil
}

// Match reports whether path is exempt from authentication.
func (e *Exemptions) Match(path string) bool {
	if e == nil || path == "" {
		return false
	}
	path = normalizePath(path)
	if _, ok := e.literals[path]; ok {
		return true
	}
	for _, g := range e.prefixes {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

var _ Authenticator = NoAuth{}
