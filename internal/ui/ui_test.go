package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/sokinpui/codedrop/model"
)

func init() {
	color.NoColor = true
}

func TestPrintDispositionTracked(t *testing.T) {
	var buf bytes.Buffer
	PrintDisposition(&buf, model.Disposition{
		Kind:         model.KindTracked,
		Path:         "/repo/src/app.py",
		RelativePath: "src/app.py",
		Write:        model.WriteOutcome{Status: model.WriteWritten, Added: 2, Deleted: 1},
		Commit:       model.CommitOutcome{Status: model.CommitCommitted},
		Execution:    model.ExecutionResult{Status: model.ExecOK, Stdout: "2\n", DurationMS: 12},
	})

	out := buf.String()
	assert.Contains(t, out, "Tracked src/app.py")
	assert.Contains(t, out, "write:  written (+2 -1)")
	assert.Contains(t, out, "commit: committed")
	assert.Contains(t, out, "run:    ok (exit 0, 12ms)")
	assert.Contains(t, out, "2\n")
}

func TestPrintDispositionRejected(t *testing.T) {
	var buf bytes.Buffer
	PrintDisposition(&buf, model.Disposition{
		Kind:         model.KindRejected,
		Reason:       "path escapes repository root",
		FilenameHint: "../evil.sh",
	})
	assert.Contains(t, buf.String(), "Rejected: path escapes repository root")
	assert.Contains(t, buf.String(), "marker: ../evil.sh")
	assert.NotContains(t, buf.String(), "commit:")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	PrintHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No submissions recorded.")

	buf.Reset()
	PrintHistory(&buf, []model.JournalEntry{{
		Timestamp: time.Unix(0, 0),
		Kind:      model.KindFallback,
		Path:      "/inbox/a.txt",
		Write:     model.WriteWritten,
		Commit:    model.CommitNotApplicable,
		Execution: model.ExecNotExecuted,
	}})
	assert.Contains(t, buf.String(), "fallback")
	assert.Contains(t, buf.String(), "/inbox/a.txt")
}
