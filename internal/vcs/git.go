package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultQueryTimeout  = 5 * time.Second
	DefaultCommitTimeout = 15 * time.Second
)

// Options configures a Git runner.
type Options struct {
	// Enabled mirrors the configuration switch. When false no git command runs.
	Enabled       bool
	QueryTimeout  time.Duration
	CommitTimeout time.Duration
	Log           *logrus.Entry
}

// Git runs git commands scoped to one working root.
type Git struct {
	root          string
	enabled       bool
	queryTimeout  time.Duration
	commitTimeout time.Duration
	log           *logrus.Entry
}

// New creates a Git runner rooted at root.
func New(root string, opts Options) *Git {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = DefaultCommitTimeout
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Git{
		root:          root,
		enabled:       opts.Enabled,
		queryTimeout:  opts.QueryTimeout,
		commitTimeout: opts.CommitTimeout,
		log:           opts.Log,
	}
}

// Available reports whether version control is switched on, the git CLI is
// installed and the root is inside a work tree.
func (g *Git) Available(ctx context.Context) bool {
	if !g.enabled {
		return false
	}
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	out, err := g.run(ctx, g.queryTimeout, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Locate returns the single tracked path whose basename equals basename.
// Zero matches and ambiguous matches both report not found.
func (g *Git) Locate(ctx context.Context, basename string) (string, bool) {
	if basename == "" || strings.ContainsAny(basename, `/\`) {
		return "", false
	}
	paths, err := g.lsFiles(ctx, basename, "*/"+basename)
	if err != nil {
		g.log.WithError(err).Debug("tracked file lookup failed")
		return "", false
	}

	var matches []string
	for _, p := range paths {
		if filepath.Base(p) == basename {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0], true
	default:
		g.log.WithFields(logrus.Fields{
			"basename":   basename,
			"candidates": matches,
		}).Warn("ambiguous tracked basename, not picking any")
		return "", false
	}
}

// IsTracked reports whether relPath names a file in the index.
func (g *Git) IsTracked(ctx context.Context, relPath string) bool {
	if relPath == "" {
		return false
	}
	paths, err := g.lsFiles(ctx, relPath)
	if err != nil {
		return false
	}
	for _, p := range paths {
		if p == relPath {
			return true
		}
	}
	return false
}

func (g *Git) lsFiles(ctx context.Context, pathspecs ...string) ([]string, error) {
	args := append([]string{"ls-files", "-z", "--"}, pathspecs...)
	out, err := g.run(ctx, g.queryTimeout, args...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// CommandError carries the combined output of a failed git invocation.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return fmt.Sprintf("git %s failed: %s", strings.Join(e.Args, " "), out)
	}
	return fmt.Sprintf("git %s failed: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// run executes git in the root with a bounded timeout and returns the
// combined output. On failure the output is still returned.
func (g *Git) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = g.root
	cmd.Env = mergeEnv(os.Environ(), map[string]string{
		"GIT_PAGER":           "cat",
		"GIT_TERMINAL_PROMPT": "0",
		"GIT_OPTIONAL_LOCKS":  "0",
		"LC_ALL":              "C",
		"LANG":                "C",
		"NO_COLOR":            "1",
	})
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, runCtx.Err())
		}
		return string(output), &CommandError{Args: args, Output: string(output), Err: err}
	}
	return string(output), nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	env := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if idx := strings.Index(entry, "="); idx != -1 {
			env[entry[:idx]] = entry[idx+1:]
		}
	}
	for key, value := range overrides {
		env[key] = value
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(env))
	for _, key := range keys {
		merged = append(merged, key+"="+env[key])
	}
	return merged
}
