package runtime

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/asynkron/diffapply/pkg/patch"
)

// ConfirmFunc is asked before a computed change is written. Returning false
// leaves the file untouched.
type ConfirmFunc func(ctx context.Context, result patch.FileResult) (bool, error)

// ApplyOptions configures the apply_patch command. Zero values are replaced
// by setDefaults.
type ApplyOptions struct {
	// WorkingDir resolves relative paths. Defaults to the process working
	// directory.
	WorkingDir string

	// Patch controls parsing and matching.
	Patch patch.Options

	// LockTimeout bounds how long a call waits for another writer of the
	// same file. Zero means ten seconds.
	LockTimeout time.Duration
	// DisableLocking skips the per-file lock. Only safe when the host
	// already serializes writers.
	DisableLocking bool

	// Confirm, when set, is consulted after the result is computed and
	// before it is written.
	Confirm ConfirmFunc

	Logger  Logger
	Metrics Metrics
}

// setDefaults fills unset fields with their defaults.
func (o *ApplyOptions) setDefaults() {
	o.WorkingDir = strings.TrimSpace(o.WorkingDir)
	if o.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.WorkingDir = wd
		}
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = &NoOpLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = &NoOpMetrics{}
	}
}

// validate performs lightweight validation of user supplied options.
func (o *ApplyOptions) validate() error {
	if o.WorkingDir == "" {
		return errors.New("runtime: working directory could not be determined")
	}
	return nil
}
