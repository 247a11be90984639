// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides process-lifetime implementations of the auth
// repositories. State starts empty and is guarded by a sync.RWMutex, so every
// read of a session or principal observes all completed writes.
package memory
