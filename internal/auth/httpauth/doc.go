// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpauth adapts the auth package to net/http: request and cookie
// adapters, an authentication middleware, and the account API handler.
package httpauth
