package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sokinpui/codedrop/model"
)

const (
	DefaultExecTimeout   = 15 * time.Second
	DefaultSyntaxTimeout = 10 * time.Second

	// maxCapture bounds each captured stream.
	maxCapture = 1 << 20
	waitDelay  = 2 * time.Second
)

// Options configures a Sandbox.
type Options struct {
	Enabled       map[model.ScriptKind]bool
	Interpreters  map[model.ScriptKind]string
	ExecTimeout   time.Duration
	SyntaxTimeout time.Duration
	Log           *logrus.Entry
}

// Sandbox runs saved scripts one at a time with a wall-clock timeout.
type Sandbox struct {
	enabled       map[model.ScriptKind]bool
	interpreters  map[model.ScriptKind]string
	execTimeout   time.Duration
	syntaxTimeout time.Duration
	log           *logrus.Entry
}

// New creates a Sandbox. Zero timeouts take the defaults.
func New(opts Options) *Sandbox {
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = DefaultExecTimeout
	}
	if opts.SyntaxTimeout <= 0 {
		opts.SyntaxTimeout = DefaultSyntaxTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sandbox{
		enabled:       opts.Enabled,
		interpreters:  opts.Interpreters,
		execTimeout:   opts.ExecTimeout,
		syntaxTimeout: opts.SyntaxTimeout,
		log:           opts.Log,
	}
}

// Enabled reports whether auto-execution is on for kind.
func (s *Sandbox) Enabled(kind model.ScriptKind) bool {
	if _, ok := capabilities[kind]; !ok {
		return false
	}
	return s.enabled[kind]
}

// Run executes the file at path as a script of the given kind. Every failure
// is reported through the returned result.
func (s *Sandbox) Run(ctx context.Context, path string, kind model.ScriptKind) model.ExecutionResult {
	if !s.Enabled(kind) {
		return model.ExecutionResult{Status: model.ExecNotExecuted, Kind: kind}
	}
	log := s.log.WithFields(logrus.Fields{"path": path, "kind": kind})

	interpreter, ok := resolveInterpreter(kind, s.interpreters[kind])
	if !ok {
		log.Warn("no interpreter found")
		return model.ExecutionResult{Status: model.ExecInterpreterMissing, Kind: kind}
	}

	dir := filepath.Dir(path)
	if capabilities[kind].syntaxCheck {
		res := s.runProcess(ctx, s.syntaxTimeout, dir, interpreter, "-n", path)
		switch {
		case res.timedOut:
			log.Warn("syntax check timed out")
			return res.result(model.ExecTimedOut, kind)
		case res.err != nil:
			var exitErr *exec.ExitError
			if !errors.As(res.err, &exitErr) {
				log.WithError(res.err).WithField("interpreter", interpreter).Warn("interpreter could not be started")
				return res.result(model.ExecInterpreterMissing, kind)
			}
			return res.result(model.ExecSyntaxError, kind)
		}
	}

	res := s.runProcess(ctx, s.execTimeout, dir, interpreter, path)
	switch {
	case res.timedOut:
		log.WithField("timeout", s.execTimeout).Warn("execution timed out")
		return res.result(model.ExecTimedOut, kind)
	case res.err != nil:
		return res.result(model.ExecFailed, kind)
	default:
		return res.result(model.ExecOK, kind)
	}
}

type processResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	duration time.Duration
	err      error
}

func (r processResult) result(status model.ExecutionStatus, kind model.ScriptKind) model.ExecutionResult {
	out := model.ExecutionResult{
		Status:     status,
		Kind:       kind,
		ExitCode:   r.exitCode,
		DurationMS: r.duration.Milliseconds(),
	}
	if status != model.ExecTimedOut {
		out.Stdout = r.stdout
		out.Stderr = r.stderr
	}
	return out
}

func (s *Sandbox) runProcess(ctx context.Context, timeout time.Duration, dir, name string, args ...string) processResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	stdout := &cappedBuffer{limit: maxCapture}
	stderr := &cappedBuffer{limit: maxCapture}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	isolateProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	res := processResult{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		duration: time.Since(start),
		err:      err,
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
		res.exitCode = -1
		return res
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.exitCode = exitErr.ExitCode()
		} else {
			res.exitCode = -1
			if res.stderr == "" {
				res.stderr = err.Error()
			}
		}
	}
	return res
}

// cappedBuffer keeps at most limit bytes and silently drops the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
