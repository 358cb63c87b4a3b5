package patch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ApplyToMemory applies patchText to the document stored under path in files.
// The map is copied before mutation and the updated snapshot is returned; the
// input map is never modified, even when the patch applies cleanly.
func ApplyToMemory(ctx context.Context, files map[string]string, path, patchText string, opts Options) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Code: CodeIO, Message: err.Error(), Err: err}
	}
	key := filepath.Clean(strings.TrimSpace(path))
	if key == "" || key == "." {
		return nil, &Error{Code: CodeIO, Message: "invalid patch path"}
	}
	original, ok := files[key]
	if !ok {
		return nil, &Error{
			Code:    CodeIO,
			Path:    key,
			Message: fmt.Sprintf("failed to read %s: document does not exist", key),
		}
	}

	updated, err := Apply(original, patchText, opts)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Path = key
		}
		return nil, err
	}

	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[k] = v
	}
	snapshot[key] = updated
	return snapshot, nil
}
