package codedrop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/sokinpui/codedrop/internal/config"
	"github.com/sokinpui/codedrop/internal/fs"
	"github.com/sokinpui/codedrop/internal/gate"
	"github.com/sokinpui/codedrop/internal/logging"
	"github.com/sokinpui/codedrop/internal/marker"
	"github.com/sokinpui/codedrop/internal/metrics"
	"github.com/sokinpui/codedrop/internal/nvim"
	"github.com/sokinpui/codedrop/internal/parser"
	"github.com/sokinpui/codedrop/internal/sandbox"
	"github.com/sokinpui/codedrop/internal/state"
	"github.com/sokinpui/codedrop/internal/vcs"
	"github.com/sokinpui/codedrop/model"
)

var (
	// ErrEmptyPayload is returned for empty or whitespace-only payloads.
	// Nothing is resolved or written.
	ErrEmptyPayload = errors.New("payload is empty")
	// ErrGateTimeout is returned when lock_timeout is set and another
	// submission held the gate for longer.
	ErrGateTimeout = gate.ErrTimeout
)

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

type submissionIDKey struct{}

// WithSubmissionID attaches a correlation id that Submit uses instead of
// generating one.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submissionIDKey{}, id)
}

func submissionID(ctx context.Context) string {
	if id, ok := ctx.Value(submissionIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Options carries optional collaborators for New.
type Options struct {
	// Logger defaults to a logger built from cfg.Log.
	Logger *logrus.Logger
	// Registry receives the metrics collectors. A fresh registry is used
	// when nil.
	Registry *prometheus.Registry
	// Now is the clock used for generated names and journal entries.
	Now func() time.Time
	// Gate serializes submissions. Apps sharing a gate never run pipelines
	// at the same time. A private gate with cfg.LockTimeout is used when nil.
	Gate *gate.Gate
}

// App orchestrates the submission pipeline behind a single gate.
type App struct {
	cfg       *config.Config
	log       *logrus.Entry
	extractor *marker.Extractor
	resolver  *fs.PathResolver
	git       *vcs.Git
	sandbox   *sandbox.Sandbox
	gate      *gate.Gate
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	journal   *state.Manager
	editor    *nvim.Manager
	now       func() time.Time
}

// New creates a new App instance.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	g := opts.Gate
	if g == nil {
		g = gate.New(cfg.LockTimeout)
	}

	git := vcs.New(cfg.WorkingRoot, vcs.Options{
		Enabled:       cfg.VersionControlled,
		QueryTimeout:  cfg.Timeouts.GitQuery,
		CommitTimeout: cfg.Timeouts.GitCommit,
		Log:           logging.Component(logger, "vcs"),
	})

	var locator fs.Locator
	if cfg.VersionControlled {
		locator = git
	}
	resolver, err := fs.NewPathResolver(cfg.WorkingRoot, cfg.SaveDir, locator, logging.Component(logger, "resolver"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path resolver: %w", err)
	}

	a := &App{
		cfg:       cfg,
		log:       logging.Component(logger, "pipeline"),
		extractor: marker.New(cfg.MarkerToken),
		resolver:  resolver,
		git:       git,
		sandbox: sandbox.New(sandbox.Options{
			Enabled:       cfg.AutoRunKinds(),
			Interpreters:  cfg.InterpreterPaths(),
			ExecTimeout:   cfg.Timeouts.Execute,
			SyntaxTimeout: cfg.Timeouts.SyntaxCheck,
			Log:           logging.Component(logger, "sandbox"),
		}),
		gate:     g,
		metrics:  metrics.MustNewMetrics(registry),
		registry: registry,
		now:      now,
	}

	if cfg.Journal {
		journal, err := state.New(cfg.WorkingRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize state manager: %w", err)
		}
		a.journal = journal
	}

	editor, err := nvim.New(cfg.Nvim.Address, logging.Component(logger, "nvim"))
	if err != nil {
		a.log.WithError(err).Warn("editor reload disabled")
	}
	a.editor = editor

	return a, nil
}

// Close releases the editor connection.
func (a *App) Close() {
	a.editor.Close()
}

// Registry returns the registry holding the App's metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// RepoRoot returns the canonical working root.
func (a *App) RepoRoot() string {
	return a.resolver.RepoRoot()
}

// SaveRoot returns the canonical save directory.
func (a *App) SaveRoot() string {
	return a.resolver.SaveRoot()
}

// JournalPath returns the journal file, or "" when the journal is off.
func (a *App) JournalPath() string {
	if a.journal == nil {
		return ""
	}
	return a.journal.Path()
}

// Busy reports whether a submission currently holds the gate.
func (a *App) Busy() bool {
	return a.gate.Busy()
}

// History returns up to n journal entries, newest first.
func (a *App) History(n int) ([]model.JournalEntry, error) {
	if a.journal == nil {
		return nil, nil
	}
	return a.journal.Recent(n)
}

// Submit runs one payload through the pipeline while holding the gate. Only
// ErrEmptyPayload, a gate acquisition failure or a recovered panic are
// returned as errors; every other failure is a field of the disposition.
func (a *App) Submit(ctx context.Context, payload string) (d model.Disposition, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	if strings.TrimSpace(payload) == "" {
		return model.Disposition{}, ErrEmptyPayload
	}
	id := submissionID(ctx)
	log := a.log.WithField("submission_id", id)

	var took time.Duration
	waited, err := a.gate.Do(ctx, func() {
		start := time.Now()
		// Callers cannot cancel a submission once it holds the gate.
		d = a.process(context.WithoutCancel(ctx), id, payload, log)
		took = time.Since(start)
	})
	a.metrics.ObserveGateWait(waited)
	if err != nil {
		log.WithError(err).WithField("waited", waited).Warn("submission not admitted")
		return model.Disposition{}, err
	}

	a.metrics.ObserveDisposition(d, took)
	log.WithFields(logrus.Fields{
		"kind":      d.Kind,
		"path":      d.Path,
		"write":     d.Write.Status,
		"commit":    d.Commit.Status,
		"execution": d.Execution.Status,
		"took":      took,
	}).Info("submission processed")
	return d, nil
}

// process is the pipeline body. It must only run while holding the gate.
func (a *App) process(ctx context.Context, id, payload string, log *logrus.Entry) model.Disposition {
	if a.cfg.UnwrapMarkdown {
		payload = parser.Unwrap(payload, a.cfg.MarkerToken)
	}

	d := model.Disposition{ID: id}
	var sanitized string
	mark, body := a.extractor.Extract(payload)
	if mark != nil {
		d.FilenameHint = mark.Filename
		sanitized = fs.Sanitize(mark.Filename)
	}

	decision := a.resolver.Resolve(ctx, sanitized)
	if decision.Kind == model.KindRejected && decision.Reason == fs.ReasonNoFilename {
		name := fs.GenerateName(a.now(), body, a.cfg.DefaultExtension)
		log.WithField("name", name).Debug("no usable filename, generated one")
		decision = a.resolver.ResolveFallback(name)
	}
	d.Kind = decision.Kind
	d.Path = decision.AbsolutePath
	d.RelativePath = decision.RelativePath
	d.Reason = decision.Reason

	switch decision.Kind {
	case model.KindRejected:
		log.WithFields(logrus.Fields{"hint": d.FilenameHint, "reason": d.Reason}).Warn("submission rejected")
		d.Write = model.WriteOutcome{Status: model.WriteSkipped}
		d.Commit = model.CommitOutcome{Status: model.CommitNotApplicable}
		d.Execution = model.ExecutionResult{Status: model.ExecNotExecuted}
		return d
	case model.KindTracked:
		d.Write, d.Commit = a.git.Sync(ctx, decision.RelativePath, decision.AbsolutePath, []byte(body))
	default:
		d.Write = writeFallback(decision.AbsolutePath, body)
		d.Commit = model.CommitOutcome{Status: model.CommitNotApplicable}
	}

	if d.Write.Status == model.WriteFailed {
		log.WithField("error", d.Write.Error).Error("write failed, skipping execution")
		d.Execution = model.ExecutionResult{Status: model.ExecNotExecuted}
		return d
	}
	if d.Write.Status == model.WriteWritten {
		a.editor.Reload(d.Path)
	}

	d.Execution = a.sandbox.Run(ctx, d.Path, sandbox.KindForPath(d.Path))
	a.record(d, log)
	return d
}

func writeFallback(path, body string) model.WriteOutcome {
	if err := fs.WriteFile(path, []byte(body)); err != nil {
		return model.WriteOutcome{Status: model.WriteFailed, Error: err.Error()}
	}
	return model.WriteOutcome{Status: model.WriteWritten, Bytes: len(body)}
}

func (a *App) record(d model.Disposition, log *logrus.Entry) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(state.CreateEntry(d, a.now())); err != nil {
		log.WithError(err).Warn("could not record submission")
	}
}

// ContentSource supplies the payload for a one-shot run.
type ContentSource interface {
	GetContent() (string, error)
}

// Execute reads one payload from src and submits it.
func (a *App) Execute(ctx context.Context, src ContentSource) (model.Summary, error) {
	content, err := src.GetContent()
	if err != nil {
		return model.Summary{}, err
	}
	if content == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	d, err := a.Submit(ctx, content)
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summary{Disposition: &d}, nil
}
