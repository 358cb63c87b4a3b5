// Package schema holds the JSON schema for the apply_patch tool payload.
package schema

import (
	"encoding/json"
	"fmt"
)

// ToolName is the tool identifier agents use to request a patch.
const ToolName = "apply_patch"

const applyPatchSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "apply_patch",
  "type": "object",
  "additionalProperties": false,
  "required": ["path", "patch"],
  "properties": {
    "path": {
      "type": "string",
      "minLength": 1,
      "pattern": "\\S",
      "description": "File to patch, relative to the workspace root or absolute."
    },
    "patch": {
      "type": "string",
      "description": "Unified diff hunks for a single file. Each hunk starts with an @@ header."
    },
    "dry_run": {
      "type": "boolean",
      "description": "Compute the result without writing the file."
    }
  }
}`

// ApplyPatchSchema returns a fresh copy of the tool payload schema as a map
// so callers may embed it in tool definitions.
func ApplyPatchSchema() (map[string]any, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal([]byte(applyPatchSchemaJSON), &schemaMap); err != nil {
		return nil, fmt.Errorf("schema: decode apply_patch schema: %w", err)
	}
	return schemaMap, nil
}
