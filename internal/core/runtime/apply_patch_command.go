package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/asynkron/diffapply/internal/core/schema"
	"github.com/asynkron/diffapply/internal/workspace"
	"github.com/asynkron/diffapply/pkg/patch"
)

const applyPatchUsage = "Usage: apply_patch {\"path\": \"<file>\", \"patch\": \"<unified diff>\", \"dry_run\": false}\n\n" +
	"Applies unified-diff hunks to a single file. Context and removed lines must match\n" +
	"the file exactly; on any mismatch the file is left unchanged and the diff should be\n" +
	"regenerated against the current content.\n"

// ApplyPatchCommand applies unified diffs requested by an agent. Each call
// holds an exclusive lock on the target for the whole read-apply-write cycle.
type ApplyPatchCommand struct {
	options ApplyOptions
	logger  Logger
}

// NewApplyPatchCommand validates opts and builds the command.
func NewApplyPatchCommand(opts ApplyOptions) (*ApplyPatchCommand, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &ApplyPatchCommand{
		options: opts,
		logger:  opts.Logger.WithFields(Field("command", schema.ToolName)),
	}, nil
}

// Usage describes the tool for prompts and help output.
func (c *ApplyPatchCommand) Usage() string {
	return applyPatchUsage
}

// Handler exposes the command as an InternalCommandHandler.
func (c *ApplyPatchCommand) Handler() InternalCommandHandler {
	return c.Handle
}

// Handle decodes the raw tool arguments and applies the request. Invalid
// payloads yield feedback with exit code 2 and a nil error.
func (c *ApplyPatchCommand) Handle(ctx context.Context, raw string) (ObservationPayload, error) {
	req, feedback, ok, err := decodeApplyRequest(raw)
	if err != nil {
		return ObservationPayload{}, err
	}
	if !ok {
		c.logger.Warn(ctx, "apply_patch payload rejected", Field("summary", feedback.Summary))
		return feedback, nil
	}
	return c.Apply(ctx, req)
}

// Apply runs a decoded request. Patch mismatches and I/O failures are
// returned both as an error and as a payload with exit code 1 whose Stderr
// holds the user-facing report.
func (c *ApplyPatchCommand) Apply(ctx context.Context, req ApplyRequest) (ObservationPayload, error) {
	if getTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, generateTraceID())
	}
	// The lock sidecar and the written file must resolve to the same path.
	req.Path = strings.TrimSpace(req.Path)
	started := time.Now()
	logger := c.logger.WithFields(Field("path", req.Path), Field("dry_run", req.DryRun))
	logger.Debug(ctx, "apply_patch requested", Field("patch_bytes", len(req.Patch)))

	fsOpts := patch.FilesystemOptions{
		Options:    c.options.Patch,
		WorkingDir: c.options.WorkingDir,
		DryRun:     true,
	}

	release, err := c.lock(ctx, req.Path)
	if err != nil {
		logger.Error(ctx, "apply_patch lock failed", err)
		c.record(started, err, false)
		return failurePayload(req, err), err
	}
	defer release()
	c.options.Metrics.RecordLockWait(time.Since(started))

	result, err := patch.ApplyFile(ctx, req.Path, req.Patch, fsOpts)
	if err != nil {
		logger.Warn(ctx, "apply_patch failed",
			Field("error", err.Error()),
			Field("duration_ms", time.Since(started).Milliseconds()))
		c.record(started, err, false)
		return failurePayload(req, err), err
	}

	payload := ObservationPayload{
		Path:     result.Path,
		Changed:  result.Changed,
		DryRun:   req.DryRun,
		ExitCode: exitCode(0),
		Result:   &result,
	}

	switch {
	case !result.Changed:
		payload.Summary = "No changes applied."
		payload.Stdout = fmt.Sprintf("No changes applied to %s.", result.Path)
	case req.DryRun:
		payload.Summary = "Patch applies cleanly."
		payload.Stdout = fmt.Sprintf("Dry run: %s would be updated.", result.Path)
	default:
		if c.options.Confirm != nil {
			accepted, err := c.options.Confirm(ctx, result)
			if err != nil {
				logger.Error(ctx, "apply_patch confirmation failed", err)
				c.record(started, err, false)
				return failurePayload(req, err), err
			}
			if !accepted {
				payload.Declined = true
				payload.Summary = "Patch declined."
				payload.Stdout = fmt.Sprintf("Patch declined; %s was left unchanged.", result.Path)
				logger.Info(ctx, "apply_patch declined")
				c.record(started, nil, false)
				return payload, nil
			}
		}
		fsOpts.DryRun = false
		written, err := patch.ApplyFile(ctx, req.Path, req.Patch, fsOpts)
		if err != nil {
			logger.Warn(ctx, "apply_patch write failed", Field("error", err.Error()))
			c.record(started, err, false)
			return failurePayload(req, err), err
		}
		payload.Result = &written
		payload.Summary = "Patch applied."
		payload.Stdout = fmt.Sprintf("Success. Updated the following files:\nM %s", written.Path)
	}

	c.record(started, nil, payload.Changed && !req.DryRun)
	logger.Info(ctx, "apply_patch completed",
		Field("changed", payload.Changed),
		Field("declined", payload.Declined),
		Field("duration_ms", time.Since(started).Milliseconds()))
	return payload, nil
}

func (c *ApplyPatchCommand) lock(ctx context.Context, path string) (func(), error) {
	if c.options.DisableLocking {
		return func() {}, nil
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(c.options.WorkingDir, target)
	}
	lockCtx, cancel := context.WithTimeout(ctx, c.options.LockTimeout)
	defer cancel()
	lock, err := workspace.AcquireFileLock(lockCtx, filepath.Clean(target))
	if err != nil {
		return nil, fmt.Errorf("apply_patch: %w", err)
	}
	return lock.Release, nil
}

// Metrics returns the collector the command records into.
func (c *ApplyPatchCommand) Metrics() Metrics {
	return c.options.Metrics
}

func (c *ApplyPatchCommand) record(started time.Time, err error, changed bool) {
	code := ""
	if err != nil {
		code = string(patch.CodeIO)
		var pe *patch.Error
		if errors.As(err, &pe) && pe.Code != "" {
			code = string(pe.Code)
		}
	}
	c.options.Metrics.RecordApply(time.Since(started), code, changed)
}

func failurePayload(req ApplyRequest, err error) ObservationPayload {
	payload := ObservationPayload{
		Path:     req.Path,
		DryRun:   req.DryRun,
		ExitCode: exitCode(1),
		Summary:  "Patch was not applied.",
	}
	var pe *patch.Error
	if errors.As(err, &pe) {
		payload.ErrorCode = string(pe.Code)
		payload.Line = pe.Line
		payload.Stderr = patch.FormatError(pe)
	} else {
		payload.Stderr = err.Error()
	}
	payload.Details = payload.Stderr
	return payload
}
