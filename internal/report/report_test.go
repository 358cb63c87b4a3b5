package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asynkron/diffapply/pkg/patch"
)

func TestPreviewKeepsContextAroundChanges(t *testing.T) {
	t.Parallel()

	before := "1\n2\n3\n4\n5\n6\n7\n8\n9\n"
	after := "1\n2\n3\n4\nFIVE\n6\n7\n8\n9\n"

	got := Preview(before, after)
	want := []PreviewLine{
		{Kind: patch.KindContext, Text: "3"},
		{Kind: patch.KindContext, Text: "4"},
		{Kind: patch.KindRemove, Text: "5"},
		{Kind: patch.KindAdd, Text: "FIVE"},
		{Kind: patch.KindContext, Text: "6"},
		{Kind: patch.KindContext, Text: "7"},
	}
	require.Equal(t, want, got)
}

func TestPreviewMarksGapsBetweenEdits(t *testing.T) {
	t.Parallel()

	before := "a\nb\nc\nd\ne\nf\ng\nh\ni\n"
	after := "A\nb\nc\nd\ne\nf\ng\nh\nI\n"

	got := Preview(before, after)
	var gaps int
	for _, line := range got {
		if line.Gap {
			gaps++
		}
	}
	require.Equal(t, 1, gaps)
	require.Equal(t, PreviewLine{Kind: patch.KindRemove, Text: "a"}, got[0])
	require.Equal(t, PreviewLine{Kind: patch.KindAdd, Text: "I"}, got[len(got)-1])
}

func TestPreviewEqualTextsIsEmpty(t *testing.T) {
	t.Parallel()

	require.Nil(t, Preview("same\n", "same\n"))
}

func TestRendererSuccessPlain(t *testing.T) {
	t.Parallel()

	r := NewRenderer(&bytes.Buffer{}, Options{})
	out, err := r.Success(patch.FileResult{
		Path:     "notes.txt",
		Original: "a\n",
		Updated:  "b\n",
		Changed:  true,
		Written:  true,
	}, false)
	require.NoError(t, err)
	require.Contains(t, out, "✓ Updated notes.txt")
	require.Contains(t, out, "-a")
	require.Contains(t, out, "+b")

	out, err = r.Success(patch.FileResult{Path: "notes.txt", Original: "a\n", Updated: "b\n", Changed: true}, true)
	require.NoError(t, err)
	require.Contains(t, out, "would be updated (dry run)")

	out, err = r.Success(patch.FileResult{Path: "notes.txt", Original: "a\n", Updated: "a\n"}, false)
	require.NoError(t, err)
	require.Contains(t, out, "No changes for notes.txt")
}

func TestRendererFailurePlain(t *testing.T) {
	t.Parallel()

	r := NewRenderer(&bytes.Buffer{}, Options{})
	out, err := r.Failure(&patch.Error{
		Code:     patch.CodeContextMismatch,
		Line:     1,
		Expected: "X",
		Actual:   "a",
		Path:     "notes.txt",
	})
	require.NoError(t, err)
	require.Contains(t, out, "Patch was not applied")
	require.Contains(t, out, "./notes.txt")
	require.Contains(t, out, `Expected: "X"`)

	out, err = r.Failure(errors.New("disk on fire"))
	require.NoError(t, err)
	require.Contains(t, out, "disk on fire")
}

func TestRendererMarkdown(t *testing.T) {
	t.Parallel()

	r := NewRenderer(&bytes.Buffer{}, Options{Markdown: true, Width: 80})
	out, err := r.Success(patch.FileResult{Path: "notes.txt", Original: "a\n", Updated: "b\n", Changed: true, Written: true}, false)
	require.NoError(t, err)
	require.Contains(t, out, "notes.txt")
	require.Contains(t, out, "Updated")

	out, err = r.Failure(&patch.Error{Code: patch.CodeUnexpectedEOF, Op: patch.KindContext, Line: 3, Expected: "c", Actual: patch.EOFMarker})
	require.NoError(t, err)
	require.Contains(t, out, "Patch was not applied")
	require.Contains(t, out, "reached end of file")
}
