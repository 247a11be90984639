// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the authentication core: password hashing, Basic
// credential decoding, server-side sessions, and password reset tokens.
//
// # Strategies
//
// Every strategy satisfies Authenticator:
//   - NoAuth - never resolves a principal
//   - BasicAuth - resolves "Authorization: Basic" credentials against a UserDirectory
//   - SessionAuth - resolves a session cookie through a SessionStore
//
// Session variants are built by constructor rather than by subtyping:
//   - NewSessionAuth - in-memory sessions without expiry
//   - NewExpiringSessionAuth - in-memory sessions with a fixed lifetime
//   - NewPersistentSessionAuth - durable sessions with a fixed lifetime
//
// # Services
//
//   - Service - registration, login, session validation, logout, password reset
//   - ResetTokenManager - single-use reset token issuance and redemption
//
// Soft failures (absent header, bad encoding, unknown or expired session) are
// reported as ErrUnauthenticated or a false ok value and never carry detail
// about which stage rejected the request.
package auth
