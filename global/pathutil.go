/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveWithinDir resolves a relative path against baseDir and verifies the
// result stays inside baseDir. Pipeline files and file-tool paths are always
// addressed relative to a configured root, so absolute paths and traversal
// via ".." are rejected.
// Returns the absolute resolved path on success.
func ResolveWithinDir(baseDir, relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("absolute paths not allowed: %s", relativePath)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved, err := filepath.Abs(filepath.Join(absBase, filepath.Clean(relativePath)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if resolved != absBase && !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s", relativePath)
	}

	return resolved, nil
}
