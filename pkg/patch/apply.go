package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies why a patch could not be applied.
type Code string

const (
	// CodeContextMismatch means a context line differed from the source.
	CodeContextMismatch Code = "CONTEXT_MISMATCH"
	// CodeRemoveMismatch means a line marked for removal differed from the source.
	CodeRemoveMismatch Code = "REMOVE_MISMATCH"
	// CodeUnexpectedEOF means the patch expected more lines than the source has.
	CodeUnexpectedEOF Code = "UNEXPECTED_EOF"
	// CodeHunkOutOfRange means a hunk header pointed behind the cursor or past
	// the end of the source. Only reported when Options.SeekHunkHeaders is set.
	CodeHunkOutOfRange Code = "HUNK_OUT_OF_RANGE"
	// CodeIO is used by the filesystem and memory helpers for read/write failures.
	CodeIO Code = "IO_FAILURE"
)

// EOFMarker is reported as Actual when the cursor ran past the last line.
const EOFMarker = "EOF"

// Error describes a failed patch application. Line is 1-based and refers to
// the original document.
type Error struct {
	Code     Code
	Message  string
	Op       Kind
	Line     int
	Expected string
	Actual   string
	// Hunk is the 1-based hunk number, or 0 when operations were applied
	// without hunk boundaries.
	Hunk int
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Code {
	case CodeContextMismatch:
		return fmt.Sprintf("context mismatch at line %d: expected %q, got %q", e.Line, e.Expected, e.Actual)
	case CodeRemoveMismatch:
		return fmt.Sprintf("remove mismatch at line %d: expected %q, got %q", e.Line, e.Expected, e.Actual)
	case CodeUnexpectedEOF:
		return fmt.Sprintf("unexpected end of file at line %d: expected %q, got %s", e.Line, e.Expected, EOFMarker)
	case CodeHunkOutOfRange:
		return fmt.Sprintf("hunk %d starts at line %d which is out of range", e.Hunk, e.Line)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "patch error"
}

// Unwrap exposes the underlying I/O error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options configure parsing and application.
type Options struct {
	// BlankLineAsContext treats empty lines inside a hunk as blank context
	// lines. By default an empty line ends the hunk.
	BlankLineAsContext bool
	// SeekHunkHeaders moves the cursor to the old-start line of each hunk
	// header before matching, passing skipped lines through untouched.
	// Headers without a parsable range are applied at the cursor.
	SeekHunkHeaders bool
}

// Result is the outcome of Evaluate. On failure NewText is empty and Line,
// Expected and Actual locate the mismatch.
type Result struct {
	OK       bool
	NewText  string
	Code     Code
	Line     int
	Expected string
	Actual   string
}

// Apply parses patchText and applies it to original. The returned error is
// always a *Error.
func Apply(original, patchText string, opts Options) (string, error) {
	hunks := ParseHunks(patchText, ParseOptions{BlankLineAsContext: opts.BlankLineAsContext})
	return ApplyHunks(original, hunks, opts)
}

// ApplyHunks applies already parsed hunks to original.
func ApplyHunks(original string, hunks []Hunk, opts Options) (string, error) {
	a := newApplier(original)
	for index, hunk := range hunks {
		a.hunk = index + 1
		if opts.SeekHunkHeaders {
			if err := a.seek(hunk); err != nil {
				return "", err
			}
		}
		for _, op := range hunk.Operations {
			if err := a.step(op); err != nil {
				return "", err
			}
		}
	}
	return a.finish()
}

// ApplyOperations applies a flat operation list to original.
func ApplyOperations(original string, ops []Operation) (string, error) {
	a := newApplier(original)
	for _, op := range ops {
		if err := a.step(op); err != nil {
			return "", err
		}
	}
	return a.finish()
}

// Evaluate is Apply reshaped into a Result value for callers that prefer a
// tagged outcome over an error.
func Evaluate(original, patchText string, opts Options) Result {
	text, err := Apply(original, patchText, opts)
	if err == nil {
		return Result{OK: true, NewText: text}
	}
	var pe *Error
	if !errors.As(err, &pe) {
		return Result{Actual: err.Error()}
	}
	return Result{Code: pe.Code, Line: pe.Line, Expected: pe.Expected, Actual: pe.Actual}
}

type applyState int

const (
	stateScanning applyState = iota
	stateFailed
	stateCompleted
)

// sourceLine keeps the terminator next to the text so untouched lines are
// reproduced byte for byte.
type sourceLine struct {
	text  string
	eol   string
	added bool
}

type applier struct {
	src    []sourceLine
	eol    string
	cursor int
	out    []sourceLine
	state  applyState
	hunk   int
}

func newApplier(original string) *applier {
	src, eol := splitSource(original)
	return &applier{
		src: src,
		eol: eol,
		out: make([]sourceLine, 0, len(src)),
	}
}

func (a *applier) step(op Operation) error {
	if a.state != stateScanning {
		return errors.New("patch: applier is no longer scanning")
	}
	switch op.Kind {
	case KindAdd:
		a.out = append(a.out, sourceLine{text: op.Text, eol: a.eol, added: true})
		return nil
	case KindContext, KindRemove:
		if a.cursor >= len(a.src) {
			return a.fail(&Error{
				Code:     CodeUnexpectedEOF,
				Op:       op.Kind,
				Line:     a.cursor + 1,
				Expected: op.Text,
				Actual:   EOFMarker,
			})
		}
		line := a.src[a.cursor]
		if line.text != op.Text {
			code := CodeContextMismatch
			if op.Kind == KindRemove {
				code = CodeRemoveMismatch
			}
			return a.fail(&Error{
				Code:     code,
				Op:       op.Kind,
				Line:     a.cursor + 1,
				Expected: op.Text,
				Actual:   line.text,
			})
		}
		if op.Kind == KindContext {
			a.out = append(a.out, line)
		}
		a.cursor++
		return nil
	default:
		return a.fail(&Error{Message: fmt.Sprintf("unsupported operation kind %s", op.Kind)})
	}
}

// seek passes source lines through until the cursor sits on the hunk's
// old-start line.
func (a *applier) seek(hunk Hunk) error {
	if a.state != stateScanning {
		return errors.New("patch: applier is no longer scanning")
	}
	if !hunk.HasRange {
		return nil
	}
	target := hunk.OldStart - 1
	if hunk.OldStart == 0 {
		target = 0
	}
	if target < a.cursor || target > len(a.src) {
		actual := EOFMarker
		if a.cursor < len(a.src) {
			actual = a.src[a.cursor].text
		}
		return a.fail(&Error{
			Code:     CodeHunkOutOfRange,
			Line:     hunk.OldStart,
			Expected: hunk.Header,
			Actual:   actual,
		})
	}
	a.out = append(a.out, a.src[a.cursor:target]...)
	a.cursor = target
	return nil
}

func (a *applier) fail(err *Error) error {
	a.state = stateFailed
	if err.Hunk == 0 {
		err.Hunk = a.hunk
	}
	a.out = nil
	return err
}

func (a *applier) finish() (string, error) {
	if a.state != stateScanning {
		return "", errors.New("patch: applier is no longer scanning")
	}
	// A source without a final newline keeps that state when the patch
	// consumed its last line and the output ends with an added line.
	if n := len(a.src); n > 0 && a.cursor == n && a.src[n-1].eol == "" {
		if last := len(a.out) - 1; last >= 0 && a.out[last].added {
			a.out[last].eol = ""
		}
	}
	a.out = append(a.out, a.src[a.cursor:]...)
	a.state = stateCompleted

	var b strings.Builder
	for i, line := range a.out {
		b.WriteString(line.text)
		eol := line.eol
		if eol == "" && i < len(a.out)-1 {
			eol = a.eol
		}
		b.WriteString(eol)
	}
	return b.String(), nil
}

// splitSource breaks text into lines, keeping each terminator. The second
// return value is the terminator of the first terminated line, defaulting
// to "\n".
func splitSource(text string) ([]sourceLine, string) {
	var lines []sourceLine
	dominant := ""
	for len(text) > 0 {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			lines = append(lines, sourceLine{text: text})
			break
		}
		body, eol := text[:idx], "\n"
		if strings.HasSuffix(body, "\r") {
			body, eol = body[:len(body)-1], "\r\n"
		}
		if dominant == "" {
			dominant = eol
		}
		lines = append(lines, sourceLine{text: body, eol: eol})
		text = text[idx+1:]
	}
	if dominant == "" {
		dominant = "\n"
	}
	return lines, dominant
}

// FormatError renders an Error into the message shown to users. The text is
// meant to be presented verbatim; a failed diff should be regenerated, not
// resubmitted.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	if err.Code == CodeIO || err.Code == "" {
		return err.Error()
	}

	target := "file"
	if err.Path != "" {
		display := err.Path
		if !strings.HasPrefix(display, "./") && !strings.HasPrefix(display, "/") {
			display = "./" + display
		}
		target = display
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Patch did not apply to %s: %s.", target, describeCode(err)))
	if err.Hunk > 0 {
		parts = append(parts, fmt.Sprintf("Hunk: %d", err.Hunk))
	}
	parts = append(parts, fmt.Sprintf("Line: %d", err.Line))
	parts = append(parts, fmt.Sprintf("Expected: %q", err.Expected))
	if err.Actual == EOFMarker {
		parts = append(parts, "Actual:   "+EOFMarker)
	} else {
		parts = append(parts, fmt.Sprintf("Actual:   %q", err.Actual))
	}
	parts = append(parts, "", "The file was left unchanged. Regenerate the diff against the current file content.")
	return strings.Join(parts, "\n")
}

func describeCode(err *Error) string {
	switch err.Code {
	case CodeContextMismatch:
		return "context line does not match"
	case CodeRemoveMismatch:
		return "line marked for removal does not match"
	case CodeUnexpectedEOF:
		if err.Op == KindRemove {
			return "reached end of file while expecting a line to remove"
		}
		return "reached end of file while expecting a context line"
	case CodeHunkOutOfRange:
		return "hunk header points outside the remaining file"
	default:
		return strings.ToLower(string(err.Code))
	}
}
