package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	runtimepkg "github.com/asynkron/diffapply/internal/core/runtime"
	"github.com/asynkron/diffapply/internal/report"
	"github.com/asynkron/diffapply/pkg/patch"
)

// chrome is the number of rows used by the title, border and help line.
const chrome = 5

type confirmModel struct {
	title string
	body  string

	vp     viewport.Model
	width  int
	height int
	ready  bool

	decided  bool
	accepted bool

	border    lipgloss.Style
	titleLine lipgloss.Style
	help      lipgloss.Style
}

func newConfirmModel(title, body string) *confirmModel {
	return &confirmModel{
		title:     title,
		body:      body,
		border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("129")).PaddingLeft(1).PaddingRight(1),
		titleLine: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

func (m *confirmModel) Init() tea.Cmd { return nil }

func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// border (2) + padding (2)
		w := max(msg.Width-4, 1)
		h := max(msg.Height-chrome, 1)
		if !m.ready {
			m.vp = viewport.New(w, h)
			m.ready = true
		} else {
			m.vp.Width, m.vp.Height = w, h
		}
		m.vp.SetContent(m.body)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter":
			m.decided, m.accepted = true, true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.decided, m.accepted = true, false
			return m, tea.Quit
		}
	}
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *confirmModel) View() string {
	if !m.ready {
		return m.titleLine.Render(m.title) + "\n" + m.body + "\n" + m.help.Render("apply? [y/n]")
	}
	var b strings.Builder
	b.WriteString(m.titleLine.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.border.Render(m.vp.View()))
	b.WriteString("\n")
	b.WriteString(m.help.Render(fmt.Sprintf("y/enter apply • n/esc cancel • ↑/↓ scroll (%3.f%%)", m.vp.ScrollPercent()*100)))
	return b.String()
}

// Confirm shows body in a scrollable screen and waits for y/n. Closing the
// program without an answer counts as a decline.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, title, body string) (bool, error) {
	m := newConfirmModel(title, body)
	p := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("tui: confirm: %w", err)
	}
	fm, ok := final.(*confirmModel)
	if !ok {
		return false, nil
	}
	return fm.decided && fm.accepted, nil
}

// NewConfirmFunc returns a runtime.ConfirmFunc that previews each change
// with renderer before asking for confirmation.
func NewConfirmFunc(in io.Reader, out io.Writer, renderer *report.Renderer) runtimepkg.ConfirmFunc {
	return func(ctx context.Context, result patch.FileResult) (bool, error) {
		body := renderer.RenderPreview(report.Preview(result.Original, result.Updated))
		title := fmt.Sprintf("Apply patch to %s?", result.Path)
		return Confirm(ctx, in, out, title, body)
	}
}
