// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil resolves the paths of the files lazygraph reads and writes.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileExists returns whether the file or directory exists or an error if something went wrong in the filesystem.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to FileExists(%q)", path)
}

// ExpandHome replaces a leading "~" (alone or followed by a separator) by the current user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to find home directory to expand %q", path)
	}
	return filepath.Join(home, path[1:]), nil
}

// PrepareOutput returns the expanded path of a file about to be written, creating its parent directory
// if needed.
//
// If the file already exists and overwrite is false, it returns an error.
func PrepareOutput(path string, overwrite bool) (string, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	if !overwrite {
		exists, err := FileExists(path)
		if err != nil {
			return "", err
		}
		if exists {
			return "", errors.Errorf("output file %q already exists", path)
		}
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for %q", path)
	}
	return path, nil
}
