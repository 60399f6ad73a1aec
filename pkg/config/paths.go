// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the arbiter's data directory, home to the file-backed
// commit store and any persisted state.
//
// Priority:
// 1. VERDIKTA_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.verdikta (default)
//
// The returned path is always absolute. Tilde (~) is expanded to the user's
// home directory, and relative paths are converted to absolute.
//
// This is read directly from os.Getenv(), not viper, to avoid a circular
// dependency during config bootstrap (it locates the config file itself).
func GetDataDir() string {
	if dataDir := os.Getenv("VERDIKTA_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return expandPath(".verdikta")
	}
	return filepath.Join(homeDir, ".verdikta")
}

// GetScratchDir returns the directory C2/C5 extract archives and attachments
// into for the duration of one request.
//
// Priority:
// 1. VERDIKTA_SCRATCH_DIR environment variable (if set and non-empty)
// 2. GetDataDir()/scratch (default)
func GetScratchDir() string {
	if scratchDir := os.Getenv("VERDIKTA_SCRATCH_DIR"); scratchDir != "" {
		return expandPath(scratchDir)
	}
	return filepath.Join(GetDataDir(), "scratch")
}

// GetSubDir returns a subdirectory within the data directory.
// Example: GetSubDir("commits") returns ~/.verdikta/commits
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	// Make path absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
