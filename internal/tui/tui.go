package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/codedrop/codedrop"
	"github.com/sokinpui/codedrop/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))           // Orange
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle().Underline(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// RunFunc produces the summary shown once processing finishes.
type RunFunc func() (model.Summary, error)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	run     RunFunc
	spinner spinner.Model
	state   state
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(run RunFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		run:     run,
		spinner: s,
		state:   stateProcessing,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

// Failed reports whether the run ended in an error.
func (m Model) Failed() bool {
	return m.state == stateError
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n")
	}

	d := m.summary.Disposition
	if d == nil {
		if m.summary.Message == "" {
			b.WriteString(faintStyle.Render("Nothing to do."))
			b.WriteString("\n")
		}
		return b.String()
	}

	if d.Kind == model.KindRejected {
		b.WriteString(errorStyle.Render("Rejected: " + d.Reason))
		b.WriteString("\n")
		if d.FilenameHint != "" {
			b.WriteString(faintStyle.Render("  marker: " + d.FilenameHint))
			b.WriteString("\n")
		}
		return b.String()
	}

	label := "Saved"
	path := d.Path
	if d.Kind == model.KindTracked {
		label = "Tracked"
		path = d.RelativePath
	}
	b.WriteString(headerStyle.Render(label) + " " + pathStyle.Render(path) + "\n")

	write := string(d.Write.Status)
	if d.Write.Status == model.WriteWritten && (d.Write.Added > 0 || d.Write.Deleted > 0) {
		write += fmt.Sprintf(" (+%d -%d)", d.Write.Added, d.Write.Deleted)
	}
	b.WriteString(row("write", write, d.Write.Status == model.WriteFailed, false))
	b.WriteString(row("commit", string(d.Commit.Status)+suffix(d.Commit.Detail),
		d.Commit.Status == model.CommitFailed, d.Commit.Status == model.CommitSkippedNoRepo))

	exec := d.Execution
	execText := string(exec.Status)
	if exec.Status != model.ExecNotExecuted && exec.Status != model.ExecInterpreterMissing {
		execText += fmt.Sprintf(" (exit %d, %dms)", exec.ExitCode, exec.DurationMS)
	}
	execFailed := exec.Status == model.ExecFailed || exec.Status == model.ExecSyntaxError || exec.Status == model.ExecTimedOut
	b.WriteString(row("run", execText, execFailed, exec.Status == model.ExecInterpreterMissing))

	if exec.Stdout != "" {
		b.WriteString(faintStyle.Render("--- stdout ---") + "\n" + exec.Stdout)
		if !strings.HasSuffix(exec.Stdout, "\n") {
			b.WriteString("\n")
		}
	}
	if exec.Stderr != "" {
		b.WriteString(faintStyle.Render("--- stderr ---") + "\n" + errorStyle.Render(strings.TrimRight(exec.Stderr, "\n")) + "\n")
	}
	return b.String()
}

func row(name, value string, failed, warn bool) string {
	style := successStyle
	switch {
	case failed:
		style = errorStyle
	case warn:
		style = warningStyle
	}
	return fmt.Sprintf("  %-7s %s\n", name+":", style.Render(value))
}

func suffix(detail string) string {
	if detail == "" {
		return ""
	}
	return ": " + detail
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.run()
	if err != nil {
		// Check for detailed error to print stack
		var detailed *codedrop.DetailedError
		if errors.As(err, &detailed) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
