package schema

import "testing"

func TestApplyPatchSchemaRequiresPathAndPatch(t *testing.T) {
	t.Parallel()

	schemaMap, err := ApplyPatchSchema()
	if err != nil {
		t.Fatalf("ApplyPatchSchema returned error: %v", err)
	}

	required, ok := schemaMap["required"].([]any)
	if !ok {
		t.Fatalf("expected required list to be present")
	}

	seen := map[string]bool{}
	for _, value := range required {
		if str, _ := value.(string); str != "" {
			seen[str] = true
		}
	}
	if !seen["path"] || !seen["patch"] {
		t.Fatalf("expected path and patch to be required, got %v", required)
	}

	properties, ok := schemaMap["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected schema properties to be present")
	}

	dryRun, ok := properties["dry_run"].(map[string]any)
	if !ok {
		t.Fatalf("expected dry_run property to be defined")
	}
	if typ, _ := dryRun["type"].(string); typ != "boolean" {
		t.Fatalf("expected dry_run to be a boolean, got %q", typ)
	}
}

func TestApplyPatchSchemaReturnsFreshCopies(t *testing.T) {
	t.Parallel()

	first, err := ApplyPatchSchema()
	if err != nil {
		t.Fatalf("ApplyPatchSchema returned error: %v", err)
	}
	first["title"] = "mutated"

	second, err := ApplyPatchSchema()
	if err != nil {
		t.Fatalf("ApplyPatchSchema returned error: %v", err)
	}
	if second["title"] != ToolName {
		t.Fatalf("schema copy shared state: %v", second["title"])
	}
}
