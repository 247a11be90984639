// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpauth

import (
	"context"
	"net/http"

	"github.com/holomush/authcore/internal/auth"
)

type request struct {
	r *http.Request
}

// NewRequest adapts r to auth.Request. A nil r yields nil.
func NewRequest(r *http.Request) auth.Request {
	if r == nil {
		return nil
	}
	return request{r: r}
}

func (req request) Header(name string) string {
	return req.r.Header.Get(name)
}

func (req request) Cookie(name string) (string, bool) {
	c, err := req.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// CookieWriter adapts an http.ResponseWriter to auth.CookieSetter.
type CookieWriter struct {
	W http.ResponseWriter
}

// SetCookie sets an HTTP-only, root-path cookie.
func (c CookieWriter) SetCookie(name, value string) {
	http.SetCookie(c.W, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey string

const principalContextKey contextKey = "httpauth:principal"

// WithPrincipal stores the authenticated principal in ctx.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFrom returns the principal stored by the middleware, or nil.
func PrincipalFrom(ctx context.Context) *auth.Principal {
	p, ok := ctx.Value(principalContextKey).(*auth.Principal)
	if !ok {
		return nil
	}
	return p
}

var (
	_ auth.Request      = request{}
	_ auth.CookieSetter = CookieWriter{}
)
