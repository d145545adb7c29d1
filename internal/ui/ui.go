package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/sokinpui/codedrop/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

// --- Summaries ---

// PrintDisposition writes a plain report of one submission to w.
func PrintDisposition(w io.Writer, d model.Disposition) {
	HeaderColor.Fprintln(w, "--- Submission ---")

	switch d.Kind {
	case model.KindRejected:
		ErrorColor.Fprintf(w, "Rejected: %s\n", d.Reason)
		if d.FilenameHint != "" {
			fmt.Fprintf(w, "  marker: %s\n", d.FilenameHint)
		}
		return
	case model.KindTracked:
		SuccessColor.Fprint(w, "Tracked ")
	default:
		InfoColor.Fprint(w, "Saved ")
	}
	PathColor.Fprintln(w, displayPath(d))

	writeColor(d.Write.Status).Fprintf(w, "  write:  %s", d.Write.Status)
	if d.Write.Status == model.WriteWritten && (d.Write.Added > 0 || d.Write.Deleted > 0) {
		fmt.Fprintf(w, " (+%d -%d)", d.Write.Added, d.Write.Deleted)
	}
	if d.Write.Error != "" {
		fmt.Fprintf(w, ": %s", d.Write.Error)
	}
	fmt.Fprintln(w)

	commitColor(d.Commit.Status).Fprintf(w, "  commit: %s", d.Commit.Status)
	if d.Commit.Detail != "" {
		fmt.Fprintf(w, ": %s", d.Commit.Detail)
	}
	fmt.Fprintln(w)

	execColor(d.Execution.Status).Fprintf(w, "  run:    %s", d.Execution.Status)
	if d.Execution.Status != model.ExecNotExecuted && d.Execution.Status != model.ExecInterpreterMissing {
		fmt.Fprintf(w, " (exit %d, %dms)", d.Execution.ExitCode, d.Execution.DurationMS)
	}
	fmt.Fprintln(w)
	if d.Execution.Stdout != "" {
		fmt.Fprintf(w, "%s", d.Execution.Stdout)
	}
	if d.Execution.Stderr != "" {
		ErrorColor.Fprintf(w, "%s", d.Execution.Stderr)
	}
}

// PrintHistory writes one line per journal entry, newest first.
func PrintHistory(w io.Writer, entries []model.JournalEntry) {
	if len(entries) == 0 {
		InfoColor.Fprintln(w, "No submissions recorded.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-8s %-9s %-17s %-19s ",
			e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Write, e.Commit, e.Execution)
		PathColor.Fprintln(w, e.Path)
	}
}

func displayPath(d model.Disposition) string {
	if d.RelativePath != "" {
		return d.RelativePath
	}
	return d.Path
}

func writeColor(s model.WriteStatus) *color.Color {
	switch s {
	case model.WriteWritten:
		return SuccessColor
	case model.WriteFailed:
		return ErrorColor
	default:
		return InfoColor
	}
}

func commitColor(s model.CommitStatus) *color.Color {
	switch s {
	case model.CommitCommitted:
		return SuccessColor
	case model.CommitFailed:
		return ErrorColor
	case model.CommitSkippedNoRepo:
		return WarningColor
	default:
		return InfoColor
	}
}

func execColor(s model.ExecutionStatus) *color.Color {
	switch s {
	case model.ExecOK:
		return SuccessColor
	case model.ExecNotExecuted:
		return InfoColor
	case model.ExecInterpreterMissing:
		return WarningColor
	default:
		return ErrorColor
	}
}
