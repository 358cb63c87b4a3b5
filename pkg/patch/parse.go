package patch

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies what an Operation does to the document.
type Kind int

const (
	// KindContext is an unchanged line that must match the source.
	KindContext Kind = iota
	// KindAdd is a line inserted into the output.
	KindAdd
	// KindRemove is a source line that must match and is dropped.
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Operation is a single body line of a hunk. Text carries the line content
// without its diff marker and without a line terminator.
type Operation struct {
	Kind Kind
	Text string
}

// Context builds a context operation.
func Context(text string) Operation { return Operation{Kind: KindContext, Text: text} }

// Add builds an add operation.
func Add(text string) Operation { return Operation{Kind: KindAdd, Text: text} }

// Remove builds a remove operation.
func Remove(text string) Operation { return Operation{Kind: KindRemove, Text: text} }

// Hunk groups the operations introduced by one "@@ ... @@" header.
//
// The range fields are only populated when the header has the usual
// "@@ -l,s +l,s @@" shape, in which case HasRange is true.
type Hunk struct {
	Header     string
	OldStart   int
	OldLines   int
	NewStart   int
	NewLines   int
	HasRange   bool
	Operations []Operation
}

// ParseOptions tweak how hunk bodies are tokenized.
type ParseOptions struct {
	// BlankLineAsContext treats an empty line inside a hunk as a blank
	// context line instead of the end of the hunk.
	BlankLineAsContext bool
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse converts unified-diff text into the flat, ordered operation list the
// applier consumes. It never fails: lines outside a hunk and unknown markers
// are skipped, and mismatches are left for Apply to report.
func Parse(input string) []Operation {
	return Flatten(ParseHunks(input, ParseOptions{}))
}

// ParseHunks splits unified-diff text into hunks, keeping the header of each.
func ParseHunks(input string, opts ParseOptions) []Hunk {
	var (
		hunks   []Hunk
		current *Hunk
		inside  bool
	)

	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, line := range splitLines(input) {
		if strings.HasPrefix(line, "@@") {
			flush()
			current = newHunk(line)
			inside = true
			continue
		}
		if !inside {
			continue
		}
		if line == "" {
			if opts.BlankLineAsContext {
				current.Operations = append(current.Operations, Context(""))
				continue
			}
			inside = false
			continue
		}
		switch line[0] {
		case ' ':
			current.Operations = append(current.Operations, Context(line[1:]))
		case '+':
			current.Operations = append(current.Operations, Add(line[1:]))
		case '-':
			current.Operations = append(current.Operations, Remove(line[1:]))
		case '\\':
			// "\ No newline at end of file"
		default:
			inside = false
		}
	}
	flush()
	return hunks
}

// Flatten concatenates the operations of every hunk in encounter order.
func Flatten(hunks []Hunk) []Operation {
	total := 0
	for _, h := range hunks {
		total += len(h.Operations)
	}
	ops := make([]Operation, 0, total)
	for _, h := range hunks {
		ops = append(ops, h.Operations...)
	}
	return ops
}

func newHunk(header string) *Hunk {
	hunk := &Hunk{Header: header}
	match := hunkHeaderRegex.FindStringSubmatch(header)
	if match == nil {
		return hunk
	}
	hunk.HasRange = true
	hunk.OldStart = atoiDefault(match[1], 0)
	hunk.OldLines = atoiDefault(match[2], 1)
	hunk.NewStart = atoiDefault(match[3], 0)
	hunk.NewLines = atoiDefault(match[4], 1)
	return hunk
}

func atoiDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// splitLines breaks patch text on "\n" or "\r\n" and drops the empty artifact
// that follows a trailing newline.
func splitLines(input string) []string {
	if input == "" {
		return nil
	}
	lines := strings.Split(input, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
