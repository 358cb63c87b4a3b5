package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrNoTarget is returned when a patch carries no ---/+++ file headers.
var ErrNoTarget = errors.New("workspace: patch does not name a target file")

// stubFragments are minimal well-formed hunks appended to the leading file
// headers. gitdiff only recognizes traditional ---/+++ headers when a
// fragment follows them. The variants cover modified, created and deleted
// files.
var stubFragments = []string{
	"@@ -1 +1 @@\n-\n+\n",
	"@@ -0,0 +1 @@\n+\n",
	"@@ -1 +0,0 @@\n-\n",
}

// InferTarget returns the path named by the file headers of a single-file
// patch. The a/ and b/ prefixes diff tools add are removed. Patches that
// touch more than one file, or binary patches, are rejected.
//
// Hunk bodies are not validated here: bare "@@" headers and miscounted
// ranges are accepted, since the engine applies them.
func InferTarget(patchText string) (string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patchText))
	if err != nil || len(files) == 0 {
		files, err = parseLeadingHeaders(patchText)
		if err != nil {
			return "", err
		}
	}
	switch len(files) {
	case 0:
		return "", ErrNoTarget
	case 1:
	default:
		return "", fmt.Errorf("workspace: patch touches %d files; only single-file patches are supported", len(files))
	}

	file := files[0]
	if file.IsBinary {
		return "", fmt.Errorf("workspace: %s: binary patches are not supported", displayName(file))
	}

	name := file.NewName
	if file.IsDelete || name == "" {
		name = file.OldName
	}
	// gitdiff strips the prefixes of "diff --git" headers itself.
	if !hasGitHeader(patchText) {
		name = stripPrefix(name, file.OldName, file.NewName)
	}
	if strings.TrimSpace(name) == "" {
		return "", ErrNoTarget
	}
	return name, nil
}

// parseLeadingHeaders parses only the text before the first hunk, followed
// by a stub fragment, so loose hunk bodies cannot fail the parse.
func parseLeadingHeaders(patchText string) ([]*gitdiff.File, error) {
	header := leadingHeader(patchText)
	if strings.TrimSpace(header) == "" {
		return nil, ErrNoTarget
	}

	var firstErr error
	for _, stub := range stubFragments {
		files, _, err := gitdiff.Parse(strings.NewReader(header + stub))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	if firstErr != nil {
		return nil, fmt.Errorf("workspace: parse file headers: %w", firstErr)
	}
	return nil, ErrNoTarget
}

func leadingHeader(patchText string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(patchText, "\n") {
		if strings.HasPrefix(line, "@@") {
			break
		}
		b.WriteString(line)
	}
	header := b.String()
	if header != "" && !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	return header
}

func hasGitHeader(patchText string) bool {
	for _, line := range strings.Split(patchText, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			return true
		}
	}
	return false
}

// stripPrefix drops the leading a/ or b/ component of a traditional header
// name. The prefix is kept when the two sides still disagree once stripped.
func stripPrefix(name, oldName, newName string) string {
	trimmed, ok := cutSidePrefix(name)
	if !ok {
		return name
	}
	oldRest, _ := cutSidePrefix(oldName)
	newRest, _ := cutSidePrefix(newName)
	if oldName == "" || newName == "" || oldRest == newRest {
		return trimmed
	}
	return name
}

func cutSidePrefix(name string) (string, bool) {
	for _, prefix := range []string{"a/", "b/"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return rest, true
		}
	}
	return name, false
}

func displayName(file *gitdiff.File) string {
	if file.NewName != "" {
		return file.NewName
	}
	return file.OldName
}
