// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpauth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/pkg/errutil"
)

// sessionCookieReader is implemented by strategies that read a session cookie.
type sessionCookieReader interface {
	SessionCookie(r auth.Request) string
}

// Middleware enforces authentication on every path not matched by exempt.
// The patterns are compiled once; an invalid list exempts nothing.
//
// A request carrying neither an Authorization header nor a session cookie gets
// 401. A request whose credentials resolve to no principal gets 403. Otherwise
// the principal is stored in the request context (see PrincipalFrom).
func Middleware(authenticator auth.Authenticator, exempt []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	cookies, _ := authenticator.(sessionCookieReader)

	exemptions, err := auth.NewExemptions(exempt)
	if err != nil {
		errutil.LogError(logger, "invalid exemption patterns, authenticating every path", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptions.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			req := NewRequest(r)
			hasCookie := cookies != nil && cookies.SessionCookie(req) != ""
			if authenticator.AuthorizationHeader(req) == "" && !hasCookie {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			principal, err := authenticator.CurrentUser(r.Context(), req)
			if errors.Is(err, auth.ErrUnauthenticated) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			if err != nil {
				errutil.LogErrorContext(r.Context(), logger, "failed to resolve current user", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
