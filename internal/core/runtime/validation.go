package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/asynkron/diffapply/internal/core/schema"
)

var (
	applySchemaLoader     gojsonschema.JSONLoader
	applySchemaLoaderErr  error
	applySchemaLoaderOnce sync.Once
)

const validationDetailLimit = 512

type schemaValidationError struct {
	issues []string
}

func (e schemaValidationError) Error() string {
	if len(e.issues) == 0 {
		return "apply_patch payload failed schema validation"
	}
	return strings.Join(e.issues, "; ")
}

// decodeApplyRequest ensures the tool arguments are valid JSON and satisfy
// the apply_patch schema before hydrating an ApplyRequest. When ok is false
// the returned payload describes the problem for the caller and err is nil;
// a non-nil err signals an internal failure such as a broken schema.
func decodeApplyRequest(raw string) (req ApplyRequest, feedback ObservationPayload, ok bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ApplyRequest{}, validationFeedback(ObservationPayload{
			JSONParseError: true,
			Summary:        "apply_patch was called without arguments.",
			Details:        "tool arguments were empty",
		}), false, nil
	}

	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return ApplyRequest{}, validationFeedback(ObservationPayload{
			JSONParseError: true,
			Summary:        "apply_patch arguments were not valid JSON.",
			Details:        err.Error(),
		}), false, nil
	}

	if err := validateApplyRequestAgainstSchema(trimmed); err != nil {
		var schemaErr schemaValidationError
		if errors.As(err, &schemaErr) {
			return ApplyRequest{}, validationFeedback(ObservationPayload{
				SchemaValidationError: true,
				Summary:               "apply_patch arguments failed schema validation.",
				Details:               schemaErr.Error(),
			}), false, nil
		}
		return ApplyRequest{}, ObservationPayload{}, false, fmt.Errorf("decodeApplyRequest: schema validation error: %w", err)
	}

	return req, ObservationPayload{}, true, nil
}

func validateApplyRequestAgainstSchema(raw string) error {
	loader, err := loadApplySchema()
	if err != nil {
		return fmt.Errorf("runtime: load apply_patch schema: %w", err)
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("runtime: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return schemaValidationError{issues: issues}
}

func loadApplySchema() (gojsonschema.JSONLoader, error) {
	applySchemaLoaderOnce.Do(func() {
		schemaMap, err := schema.ApplyPatchSchema()
		if err != nil {
			applySchemaLoaderErr = err
			return
		}
		applySchemaLoader = gojsonschema.NewGoLoader(schemaMap)
	})
	if applySchemaLoaderErr != nil {
		return nil, applySchemaLoaderErr
	}
	return applySchemaLoader, nil
}

func validationFeedback(payload ObservationPayload) ObservationPayload {
	payload.Details = truncateForPrompt(strings.TrimSpace(payload.Details), validationDetailLimit)

	builder := strings.Builder{}
	builder.WriteString(payload.Summary)
	if payload.Details != "" {
		builder.WriteString(" Details: ")
		builder.WriteString(payload.Details)
	}
	builder.WriteString(" Please call ")
	builder.WriteString(schema.ToolName)
	builder.WriteString(" again with JSON that strictly matches the provided schema.")

	payload.Stderr = builder.String()
	payload.ExitCode = exitCode(2)
	return payload
}

func truncateForPrompt(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}
