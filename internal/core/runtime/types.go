package runtime

import (
	"context"

	"github.com/asynkron/diffapply/pkg/patch"
)

// ApplyRequest is the decoded apply_patch tool payload.
type ApplyRequest struct {
	Path   string `json:"path"`
	Patch  string `json:"patch"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// ObservationPayload mirrors the JSON payload forwarded back to the caller
// after an apply_patch invocation.
type ObservationPayload struct {
	Stdout                string `json:"stdout,omitempty"`
	Stderr                string `json:"stderr,omitempty"`
	ExitCode              *int   `json:"exit_code,omitempty"`
	Path                  string `json:"path,omitempty"`
	Changed               bool   `json:"changed,omitempty"`
	DryRun                bool   `json:"dry_run,omitempty"`
	Declined              bool   `json:"declined,omitempty"`
	JSONParseError        bool   `json:"json_parse_error,omitempty"`
	SchemaValidationError bool   `json:"schema_validation_error,omitempty"`
	ErrorCode             string `json:"error_code,omitempty"`
	Line                  int    `json:"line,omitempty"`
	Summary               string `json:"summary,omitempty"`
	Details               string `json:"details,omitempty"`

	// Result carries the computed contents; it is not serialized.
	Result *patch.FileResult `json:"-"`
}

// InternalCommandHandler executes an agent-scoped command from its raw JSON
// arguments.
type InternalCommandHandler func(ctx context.Context, raw string) (ObservationPayload, error)

func exitCode(code int) *int {
	return &code
}
