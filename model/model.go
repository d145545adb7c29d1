package model

import "time"

// ResolutionKind tells where a submission ended up.
type ResolutionKind string

const (
	KindTracked  ResolutionKind = "tracked"
	KindFallback ResolutionKind = "fallback"
	KindRejected ResolutionKind = "rejected"
)

// Decision is the outcome of path resolution for one submission.
// RelativePath is only set for tracked files.
type Decision struct {
	Kind         ResolutionKind
	RelativePath string
	AbsolutePath string
	Reason       string
}

// WriteStatus describes what happened to the target file on disk.
type WriteStatus string

const (
	WriteWritten   WriteStatus = "written"
	WriteUnchanged WriteStatus = "unchanged"
	WriteFailed    WriteStatus = "failed"
	WriteSkipped   WriteStatus = "skipped"
)

// WriteOutcome holds the result of persisting a submission body.
type WriteOutcome struct {
	Status  WriteStatus `json:"status"`
	Bytes   int         `json:"bytes"`
	Added   int         `json:"added,omitempty"`
	Deleted int         `json:"deleted,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CommitStatus describes the version-control side of a submission.
type CommitStatus string

const (
	CommitNotApplicable    CommitStatus = "not_applicable"
	CommitSkippedNoRepo    CommitStatus = "skipped_no_repo"
	CommitSkippedIdentical CommitStatus = "skipped_identical"
	CommitCommitted        CommitStatus = "committed"
	CommitFailed           CommitStatus = "failed"
)

// CommitOutcome holds the result of staging and committing a tracked file.
type CommitOutcome struct {
	Status  CommitStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// ScriptKind is the closed set of script flavours the sandbox knows about.
type ScriptKind string

const (
	ScriptPython  ScriptKind = "python"
	ScriptShell   ScriptKind = "shell"
	ScriptUnknown ScriptKind = "unknown"
)

// ExecutionStatus is the variant tag of an ExecutionResult.
type ExecutionStatus string

const (
	ExecOK                 ExecutionStatus = "ok"
	ExecSyntaxError        ExecutionStatus = "syntax_error"
	ExecFailed             ExecutionStatus = "failed"
	ExecTimedOut           ExecutionStatus = "timed_out"
	ExecInterpreterMissing ExecutionStatus = "interpreter_missing"
	ExecNotExecuted        ExecutionStatus = "not_executed"
)

// ExecutionResult captures a sandboxed run of a saved file.
type ExecutionResult struct {
	Status     ExecutionStatus `json:"status"`
	Kind       ScriptKind      `json:"kind,omitempty"`
	ExitCode   int             `json:"exit_code"`
	Stdout     string          `json:"stdout,omitempty"`
	Stderr     string          `json:"stderr,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
}

// Disposition is the full structured outcome of one submission.
type Disposition struct {
	ID           string          `json:"id"`
	Kind         ResolutionKind  `json:"kind"`
	Path         string          `json:"path,omitempty"`
	RelativePath string          `json:"relative_path,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	FilenameHint string          `json:"filename_hint,omitempty"`
	Write        WriteOutcome    `json:"write"`
	Commit       CommitOutcome   `json:"commit"`
	Execution    ExecutionResult `json:"execution"`
}

// JournalEntry is one line of submission history.
type JournalEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	ID          string          `json:"id"`
	Kind        ResolutionKind  `json:"kind"`
	Path        string          `json:"path"`
	Write       WriteStatus     `json:"write"`
	Commit      CommitStatus    `json:"commit"`
	Execution   ExecutionStatus `json:"execution"`
	ContentHash string          `json:"content_hash"`
}

// Summary holds the results of an operation for display.
type Summary struct {
	Disposition *Disposition
	History     []JournalEntry
	Message     string
}
