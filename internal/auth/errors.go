// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating an entity that violates a uniqueness rule.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMultipleResults is returned by FindOne when a lookup matches more than one principal.
	ErrMultipleResults = errors.New("multiple results")

	// ErrUnsupportedField is returned when a directory lookup names a field it cannot query.
	ErrUnsupportedField = errors.New("unsupported lookup field")

	// ErrInvalidCredentials is returned when a password does not match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when a request resolves to no principal.
	// Missing, malformed, wrong, and expired credentials all collapse into it.
	ErrUnauthenticated = errors.New("unauthenticated")
)
