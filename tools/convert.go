/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/tenebris-tech/x2md/convert"

	"github.com/PivotLLM/Conduit/global"
	"github.com/PivotLLM/Conduit/logging"
)

// DocConvertTool converts documents (PDF, DOCX, etc.) under the files
// directory to Markdown so later steps can read them with file_read.
type DocConvertTool struct {
	root   string
	logger *logging.Logger
}

func (t *DocConvertTool) Name() string {
	return global.BuiltinDocConvert
}

func (t *DocConvertTool) Description() string {
	return "Converts documents in the files directory to Markdown"
}

func (t *DocConvertTool) Invoke(_ context.Context, params map[string]interface{}) (interface{}, error) {
	relPath, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	recursive, err := optionalBool(params, "recursive", false)
	if err != nil {
		return nil, err
	}
	skipExisting, err := optionalBool(params, "skip_existing", true)
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
			return nil, fmt.Errorf("path not found: %s", relPath)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	if !recursive && info.IsDir() {
		return nil, fmt.Errorf("recursive=false requires path to be a file")
	}

	converter := convert.New(
		convert.WithRecursion(recursive),
		convert.WithSkipExisting(skipExisting),
	)

	result, err := converter.Convert(fullPath)
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	t.logger.Infof("doc_convert: path=%s converted=%d skipped=%d failed=%d",
		relPath, result.Converted, result.Skipped, result.Failed)

	return map[string]interface{}{
		"path":      relPath,
		"converted": result.Converted,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}, nil
}
