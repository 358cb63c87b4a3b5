package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemOptions augments Options with a working directory used to resolve
// relative paths when touching the local filesystem.
type FilesystemOptions struct {
	Options
	WorkingDir string
	// DryRun computes the result without writing it back.
	DryRun bool
}

// FileResult describes the outcome of ApplyFile.
type FileResult struct {
	Path     string
	Original string
	Updated  string
	Changed  bool
	Written  bool
}

// ApplyFile reads path, applies patchText and writes the result back. The new
// content is fully computed before anything is written, and the write goes
// through a temporary file that replaces the target, so a failed apply never
// leaves a partially patched file behind.
//
// ApplyFile does not serialize concurrent callers; hold a lock on the target
// for the whole call when several writers may race.
func ApplyFile(ctx context.Context, path string, patchText string, opts FilesystemOptions) (FileResult, error) {
	abs, rel, err := resolvePath(opts.WorkingDir, path)
	if err != nil {
		return FileResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return FileResult{}, &Error{Code: CodeIO, Path: rel, Message: err.Error(), Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return FileResult{}, ioError(rel, "failed to stat", err)
	}
	if info.IsDir() {
		return FileResult{}, &Error{Code: CodeIO, Path: rel, Message: fmt.Sprintf("cannot patch directory %s", rel)}
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return FileResult{}, ioError(rel, "failed to read", err)
	}

	original := string(content)
	updated, err := Apply(original, patchText, opts.Options)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Path = rel
		}
		return FileResult{}, err
	}

	result := FileResult{
		Path:     rel,
		Original: original,
		Updated:  updated,
		Changed:  updated != original,
	}
	if opts.DryRun || !result.Changed {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return FileResult{}, &Error{Code: CodeIO, Path: rel, Message: err.Error(), Err: err}
	}
	if err := writeAtomic(abs, []byte(updated), info.Mode()); err != nil {
		return FileResult{}, ioError(rel, "failed to write", err)
	}
	result.Written = true
	return result, nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	perm := mode & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	if perm&fs.ModePerm == 0 {
		perm |= 0o644
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func resolvePath(workingDir, relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", "", &Error{Code: CodeIO, Message: "invalid patch path"}
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return cleaned, cleaned, nil
	}

	base := strings.TrimSpace(workingDir)
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", &Error{Code: CodeIO, Message: fmt.Sprintf("failed to determine working directory: %v", err), Err: err}
		}
		base = wd
	}
	return filepath.Clean(filepath.Join(base, cleaned)), cleaned, nil
}

func ioError(rel, action string, err error) *Error {
	return &Error{
		Code:    CodeIO,
		Path:    rel,
		Message: fmt.Sprintf("%s %s: %v", action, rel, err),
		Err:     err,
	}
}
