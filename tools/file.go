/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/PivotLLM/Conduit/global"
)

// maxFileReadBytes caps how much file_read will return into the run context
const maxFileReadBytes = 10 * 1024 * 1024

// FileReadTool reads a UTF-8 text file from the configured files directory.
// Paths are relative to that directory; traversal outside it is rejected.
type FileReadTool struct {
	root string
}

func (t *FileReadTool) Name() string {
	return global.BuiltinFileRead
}

func (t *FileReadTool) Description() string {
	return "Reads a text file from the files directory"
}

func (t *FileReadTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	relPath, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}

	fullPath, err := global.ResolveWithinDir(t.root, relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", relPath)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", relPath)
	}
	if info.Size() > maxFileReadBytes {
		return nil, fmt.Errorf("file %s is too large (%d bytes, limit %d)", relPath, info.Size(), maxFileReadBytes)
	}

	lock := flock.New(fullPath)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", relPath, err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	if !global.IsValidUTF8(data) {
		return nil, fmt.Errorf("file %s is not valid UTF-8 text", relPath)
	}

	return map[string]interface{}{
		"path":    relPath,
		"content": string(data),
		"size":    len(data),
	}, nil
}

// FileWriteTool writes a text file into the configured files directory using
// an atomic write under an exclusive lock.
type FileWriteTool struct {
	root string
}

func (t *FileWriteTool) Name() string {
	return global.BuiltinFileWrite
}

func (t *FileWriteTool) Description() string {
	return "Writes a text file into the files directory"
}

func (t *FileWriteTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	relPath, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := optionalString(params, "content", "")
	if err != nil {
		return nil, err
	}

	fullPath, err := global.ResolveWithinDir(t.root, relPath)
	if err != nil {
		return nil, err
	}

	// Lock a sidecar so AtomicWrite's rename doesn't invalidate the lock file
	lock := flock.New(fullPath + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", relPath, err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(fullPath + ".lock")
	}()

	if err := global.AtomicWrite(fullPath, []byte(content)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", relPath, err)
	}

	return map[string]interface{}{
		"path":    relPath,
		"size":    len(content),
		"written": true,
	}, nil
}
