// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves the XDG Base Directory paths authcore reads from.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "authcore"

// ConfigFileName is the configuration file looked up inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for authcore.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default configuration file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}
