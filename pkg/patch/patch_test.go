package patch

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyContextOnlyPatchIsIdentity(t *testing.T) {
	t.Parallel()

	original := "alpha\nbeta\ngamma\n"
	patchBody := strings.Join([]string{
		"@@ -1,3 +1,3 @@",
		" alpha",
		" beta",
		" gamma",
	}, "\n")

	got, err := Apply(original, patchBody, Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got != original {
		t.Fatalf("identity patch changed content: got %q want %q", got, original)
	}
}

func TestApplyPureAddition(t *testing.T) {
	t.Parallel()

	original := "a\nb\nc\n"
	patchBody := "@@ -1,3 +1,5 @@\n a\n+x\n b\n+y\n c\n"

	got, err := Apply(original, patchBody, Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if want := "a\nx\nb\ny\nc\n"; got != want {
		t.Fatalf("unexpected content: got %q want %q", got, want)
	}
	if lines := strings.Count(got, "\n"); lines != 5 {
		t.Fatalf("expected 5 lines, got %d", lines)
	}
}

func TestApplyPureRemoval(t *testing.T) {
	t.Parallel()

	original := "a\nb\nc\nd\n"
	patchBody := "@@ -1,4 +1,2 @@\n a\n-b\n-c\n d\n"

	got, err := Apply(original, patchBody, Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if want := "a\nd\n"; got != want {
		t.Fatalf("unexpected content: got %q want %q", got, want)
	}
}

func TestApplyMismatchAbortsWithLocation(t *testing.T) {
	t.Parallel()

	got, err := Apply("a\nb\nc\n", "@@ -1 +1 @@\n X\n", Options{})
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
	if got != "" {
		t.Fatalf("no output expected on failure, got %q", got)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pe.Code != CodeContextMismatch || pe.Line != 1 || pe.Expected != "X" || pe.Actual != "a" {
		t.Fatalf("unexpected error details: %+v", pe)
	}
	if pe.Hunk != 1 {
		t.Fatalf("expected hunk 1, got %d", pe.Hunk)
	}
}

func TestApplyReportsEndOfFileOverrun(t *testing.T) {
	t.Parallel()

	_, err := Apply("a\nb\n", "@@\n a\n b\n c\n", Options{})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Code != CodeUnexpectedEOF || pe.Line != 3 || pe.Actual != EOFMarker || pe.Expected != "c" {
		t.Fatalf("unexpected error details: %+v", pe)
	}
	if !strings.Contains(pe.Error(), "got EOF") {
		t.Fatalf("error message should mention EOF: %q", pe.Error())
	}
}

func TestApplyLeavesTrailingLinesUntouched(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+strings.Repeat("#", i))
	}
	original := strings.Join(lines, "\n") + "\n"
	patchBody := "@@ -1,2 +1,2 @@\n-line #\n+LINE ONE\n line ##\n"

	got, err := Apply(original, patchBody, Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	wantTail := strings.Join(lines[1:], "\n") + "\n"
	if !strings.HasSuffix(got, wantTail) {
		t.Fatalf("tail not preserved:\n%s", got)
	}
	if !strings.HasPrefix(got, "LINE ONE\n") {
		t.Fatalf("head not replaced:\n%s", got)
	}
}

func TestApplyEmptyPatchReturnsOriginal(t *testing.T) {
	t.Parallel()

	if ops := Parse(""); len(ops) != 0 {
		t.Fatalf("expected no operations, got %#v", ops)
	}
	original := "keep\nme"
	got, err := Apply(original, "", Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got != original {
		t.Fatalf("empty patch changed content: got %q", got)
	}
}

func TestApplyConsecutiveRemovesAdvanceOncePerLine(t *testing.T) {
	t.Parallel()

	got, err := Apply("x\nx\ny\n", "@@\n-x\n-x\n y\n", Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got != "y\n" {
		t.Fatalf("unexpected content: %q", got)
	}

	_, err = Apply("x\ny\n", "@@\n-x\n-x\n", Options{})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Code != CodeRemoveMismatch || pe.Line != 2 || pe.Actual != "y" {
		t.Fatalf("unexpected error details: %+v", pe)
	}
}

func TestApplyMultipleHunksRelyOnContextWithoutSeeking(t *testing.T) {
	t.Parallel()

	original := "a\nb\nc\nd\ne\n"
	patchBody := strings.Join([]string{
		"--- a/letters.txt",
		"+++ b/letters.txt",
		"@@ -1,2 +1,2 @@",
		"-a",
		"+A",
		" b",
		"@@ -4,2 +4,2 @@",
		" d",
		"-e",
		"+E",
	}, "\n")

	_, err := Apply(original, patchBody, Options{})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected flattened hunks to miss the gap, got %v", err)
	}
	if pe.Code != CodeContextMismatch || pe.Line != 3 || pe.Hunk != 2 {
		t.Fatalf("unexpected error details: %+v", pe)
	}

	got, err := Apply(original, patchBody, Options{SeekHunkHeaders: true})
	if err != nil {
		t.Fatalf("Apply with seeking returned error: %v", err)
	}
	if want := "A\nb\nc\nd\nE\n"; got != want {
		t.Fatalf("unexpected content: got %q want %q", got, want)
	}
}

func TestApplyPreservesLineEndings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		original string
		patch    string
		want     string
	}{
		{
			name:     "crlf source",
			original: "a\r\nb\r\n",
			patch:    "@@\n-a\n+z\n b\n",
			want:     "z\r\nb\r\n",
		},
		{
			name:     "missing final newline untouched",
			original: "a\nb",
			patch:    "@@\n-a\n+z\n",
			want:     "z\nb",
		},
		{
			name:     "unterminated last line followed by addition",
			original: "a",
			patch:    "@@\n a\n+b\n",
			want:     "a\nb",
		},
		{
			name:     "unterminated last line replaced",
			original: "a",
			patch:    "@@ -1 +1 @@\n-a\n+b\n\\ No newline at end of file\n",
			want:     "b",
		},
		{
			name:     "missing final newline kept after replacing last line",
			original: "a\nb",
			patch:    "@@\n a\n-b\n\\ No newline at end of file\n+c\n",
			want:     "a\nc",
		},
		{
			name:     "removing unterminated last line",
			original: "a\nb",
			patch:    "@@\n a\n-b\n",
			want:     "a\n",
		},
		{
			name:     "terminated source keeps newline on additions",
			original: "a\n",
			patch:    "@@\n-a\n+b\n+c\n",
			want:     "b\nc\n",
		},
		{
			name:     "empty source",
			original: "",
			patch:    "@@ -0,0 +1,2 @@\n+one\n+two\n",
			want:     "one\ntwo\n",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Apply(tc.original, tc.patch, Options{})
			if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Apply() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestApplyBlankLineHandling(t *testing.T) {
	t.Parallel()

	original := "a\n\nc\n"
	patchBody := "@@ -1,3 +1,3 @@\n a\n\n-c\n+C\n"

	got, err := Apply(original, patchBody, Options{})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if got != original {
		t.Fatalf("blank line should end the hunk by default, got %q", got)
	}

	got, err = Apply(original, patchBody, Options{BlankLineAsContext: true})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if want := "a\n\nC\n"; got != want {
		t.Fatalf("unexpected content: got %q want %q", got, want)
	}
}

func TestEvaluateReturnsResult(t *testing.T) {
	t.Parallel()

	ok := Evaluate("a\n", "@@\n-a\n+b\n", Options{})
	if !ok.OK || ok.NewText != "b\n" {
		t.Fatalf("unexpected success result: %+v", ok)
	}

	failed := Evaluate("a\nb\nc\n", "@@\n X\n", Options{})
	if failed.OK {
		t.Fatalf("expected failure result")
	}
	if failed.Line != 1 || failed.Expected != "X" || failed.Actual != "a" || failed.Code != CodeContextMismatch {
		t.Fatalf("unexpected failure result: %+v", failed)
	}
	if failed.NewText != "" {
		t.Fatalf("failure must not carry text: %q", failed.NewText)
	}
}

func TestApplyOperationsMatchesApply(t *testing.T) {
	t.Parallel()

	ops := []Operation{Context("a"), Remove("b"), Add("B"), Context("c")}
	got, err := ApplyOperations("a\nb\nc\nd\n", ops)
	if err != nil {
		t.Fatalf("ApplyOperations returned error: %v", err)
	}
	if want := "a\nB\nc\nd\n"; got != want {
		t.Fatalf("unexpected content: got %q want %q", got, want)
	}

	_, err = ApplyOperations("a\n", []Operation{Remove("z")})
	var pe *Error
	if !errors.As(err, &pe) || pe.Hunk != 0 {
		t.Fatalf("expected hunk-less *Error, got %#v", err)
	}
}
