// Package report renders apply outcomes for terminals.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/asynkron/diffapply/pkg/patch"
)

const (
	previewContext = 2
	defaultWidth   = 100
)

// Options configure a Renderer.
type Options struct {
	// Color enables ANSI styling. When false the ASCII profile is forced.
	Color bool
	// Markdown renders reports through glamour instead of plain styled text.
	Markdown bool
	// Width is the word-wrap width for markdown output.
	Width int
}

// Renderer formats successes, failures and previews.
type Renderer struct {
	opts  Options
	lip   *lipgloss.Renderer
	ok    lipgloss.Style
	fail  lipgloss.Style
	muted lipgloss.Style
	add   lipgloss.Style
	del   lipgloss.Style
}

// NewRenderer builds a Renderer whose colour profile is detected from w.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	lip := lipgloss.NewRenderer(w)
	if !opts.Color {
		lip.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		opts:  opts,
		lip:   lip,
		ok:    lip.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		fail:  lip.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted: lip.NewStyle().Foreground(lipgloss.Color("244")),
		add:   lip.NewStyle().Foreground(lipgloss.Color("42")),
		del:   lip.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Success describes a computed or written result.
func (r *Renderer) Success(result patch.FileResult, dryRun bool) (string, error) {
	status := statusLine(result, dryRun)
	preview := Preview(result.Original, result.Updated)

	if r.opts.Markdown {
		var b strings.Builder
		fmt.Fprintf(&b, "# diffapply: `%s`\n\n**Status:** %s\n", result.Path, status)
		if len(preview) > 0 {
			b.WriteString("\n```diff\n")
			for _, line := range preview {
				b.WriteString(line.marker() + line.Text + "\n")
			}
			b.WriteString("```\n")
		}
		return r.markdown(b.String())
	}

	var b strings.Builder
	style := r.ok
	if !result.Changed {
		style = r.muted
	}
	b.WriteString(style.Render(status))
	b.WriteString("\n")
	if len(preview) > 0 {
		b.WriteString(r.RenderPreview(preview))
	}
	return b.String(), nil
}

// Failure renders an apply error. *patch.Error values are expanded with
// patch.FormatError.
func (r *Renderer) Failure(err error) (string, error) {
	body := err.Error()
	var pe *patch.Error
	if errors.As(err, &pe) {
		body = patch.FormatError(pe)
	}

	if r.opts.Markdown {
		doc := "# Patch was not applied\n\n```text\n" + body + "\n```\n"
		return r.markdown(doc)
	}
	return r.fail.Render("✗ Patch was not applied") + "\n" + body + "\n", nil
}

// RenderPreview styles preview lines for a terminal.
func (r *Renderer) RenderPreview(lines []PreviewLine) string {
	var b strings.Builder
	for _, line := range lines {
		text := line.marker() + line.Text
		switch {
		case line.Gap:
			b.WriteString(r.muted.Render("⋯"))
		case line.Kind == patch.KindAdd:
			b.WriteString(r.add.Render(text))
		case line.Kind == patch.KindRemove:
			b.WriteString(r.del.Render(text))
		default:
			b.WriteString(r.muted.Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Renderer) markdown(doc string) (string, error) {
	style := "dark"
	if !r.opts.Color {
		style = "notty"
	}
	renderer, err := glam.NewTermRenderer(
		glam.WithStandardStyle(style),
		glam.WithWordWrap(r.opts.Width),
	)
	if err != nil {
		return "", fmt.Errorf("report: create markdown renderer: %w", err)
	}
	out, err := renderer.Render(doc)
	if err != nil {
		return "", fmt.Errorf("report: render markdown: %w", err)
	}
	return out, nil
}

func statusLine(result patch.FileResult, dryRun bool) string {
	switch {
	case !result.Changed:
		return fmt.Sprintf("• No changes for %s", result.Path)
	case dryRun:
		return fmt.Sprintf("✓ %s would be updated (dry run)", result.Path)
	case result.Written:
		return fmt.Sprintf("✓ Updated %s", result.Path)
	default:
		return fmt.Sprintf("✓ Patch applies to %s", result.Path)
	}
}

// PreviewLine is one line of a before/after preview. Gap marks elided
// unchanged lines.
type PreviewLine struct {
	Kind patch.Kind
	Text string
	Gap  bool
}

func (p PreviewLine) marker() string {
	switch {
	case p.Gap:
		return ""
	case p.Kind == patch.KindAdd:
		return "+"
	case p.Kind == patch.KindRemove:
		return "-"
	default:
		return " "
	}
}

// Preview computes a line-level before/after view of a change, keeping a
// little unchanged context around each edit. It returns nil when the texts
// are equal.
func Preview(before, after string) []PreviewLine {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var all []PreviewLine
	for _, d := range diffs {
		kind := patch.KindContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = patch.KindAdd
		case diffmatchpatch.DiffDelete:
			kind = patch.KindRemove
		}
		for _, text := range splitKeepingContent(d.Text) {
			all = append(all, PreviewLine{Kind: kind, Text: text})
		}
	}

	keep := make([]bool, len(all))
	for i, line := range all {
		if line.Kind == patch.KindContext {
			continue
		}
		lo, hi := i-previewContext, i+previewContext
		for j := lo; j <= hi; j++ {
			if j >= 0 && j < len(all) {
				keep[j] = true
			}
		}
	}

	var out []PreviewLine
	gap := false
	for i, line := range all {
		if !keep[i] {
			gap = true
			continue
		}
		if gap && len(out) > 0 {
			out = append(out, PreviewLine{Gap: true})
		}
		gap = false
		out = append(out, line)
	}
	return out
}

func splitKeepingContent(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, part := range parts {
		part = strings.TrimSuffix(part, "\n")
		parts[i] = strings.TrimSuffix(part, "\r")
	}
	return parts
}
