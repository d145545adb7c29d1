package codedrop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/codedrop/internal/config"
	"github.com/sokinpui/codedrop/internal/gate"
	"github.com/sokinpui/codedrop/internal/logging"
	"github.com/sokinpui/codedrop/model"
)

func newTestApp(t *testing.T, root string, mutate func(*config.Config)) *App {
	t.Helper()
	cfg, err := config.Default(root)
	require.NoError(t, err)
	cfg.Nvim.Address = ""
	if mutate != nil {
		mutate(cfg)
	}
	app, err := New(cfg, Options{Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func noGit(cfg *config.Config) { cfg.VersionControlled = false }

func tempRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := tempRoot(t)
	git(t, root, "init", "-q")
	git(t, root, "config", "user.email", "dev@example.com")
	git(t, root, "config", "user.name", "Dev")
	git(t, root, "config", "commit.gpgsign", "false")
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	git(t, root, "add", "-A")
	git(t, root, "commit", "-q", "-m", "initial")
	return root
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func commitCount(t *testing.T, dir string) int {
	t.Helper()
	n, err := strconv.Atoi(git(t, dir, "rev-list", "--count", "HEAD"))
	require.NoError(t, err)
	return n
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSubmitTrackedFileIsCommitted(t *testing.T) {
	root := initRepo(t, map[string]string{"src/app.py": "print(0)\n"})
	app := newTestApp(t, root, nil)

	d, err := app.Submit(context.Background(), "@@MARK@@ src/app.py\nprint(1)\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindTracked, d.Kind)
	assert.Equal(t, "src/app.py", d.RelativePath)
	assert.Equal(t, filepath.Join(root, "src", "app.py"), d.Path)
	assert.Equal(t, model.WriteWritten, d.Write.Status)
	assert.Equal(t, 1, d.Write.Added)
	assert.Equal(t, 1, d.Write.Deleted)
	assert.Equal(t, model.CommitCommitted, d.Commit.Status, d.Commit.Detail)
	assert.Contains(t, d.Commit.Message, "src/app.py")
	assert.Equal(t, model.ExecNotExecuted, d.Execution.Status)

	assert.Equal(t, "print(1)\n", readFile(t, d.Path))
	assert.Contains(t, git(t, root, "log", "-1", "--format=%s"), "src/app.py")
}

func TestSubmitIdenticalContentCommitsOnce(t *testing.T) {
	root := initRepo(t, map[string]string{"src/app.py": "print(0)\n"})
	app := newTestApp(t, root, nil)
	payload := "@@MARK@@ src/app.py\nprint(1)\n"

	first, err := app.Submit(context.Background(), payload)
	require.NoError(t, err)
	second, err := app.Submit(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, model.WriteWritten, first.Write.Status)
	assert.Equal(t, model.CommitCommitted, first.Commit.Status)
	assert.Equal(t, model.WriteUnchanged, second.Write.Status)
	assert.Equal(t, model.CommitSkippedIdentical, second.Commit.Status)
	assert.Equal(t, 2, commitCount(t, root))
}

func TestSubmitWithoutMarkerFallsBack(t *testing.T) {
	root := tempRoot(t)
	app := newTestApp(t, root, noGit)

	d, err := app.Submit(context.Background(), "print(2)")
	require.NoError(t, err)

	assert.Equal(t, model.KindFallback, d.Kind)
	assert.Equal(t, model.CommitNotApplicable, d.Commit.Status)
	assert.Equal(t, model.WriteWritten, d.Write.Status)
	assert.Empty(t, d.FilenameHint)
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox"), filepath.Dir(d.Path))
	assert.Regexp(t, regexp.MustCompile(`^submission_\d{8}_\d{6}_[0-9a-f]{4}\.txt$`), filepath.Base(d.Path))
	assert.Equal(t, "print(2)", readFile(t, d.Path))
}

func TestSubmitUntrackedNameFallsBack(t *testing.T) {
	root := initRepo(t, map[string]string{"README.md": "hi\n"})
	app := newTestApp(t, root, nil)

	d, err := app.Submit(context.Background(), "@@MARK@@ tools/new.py\nprint(3)\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindFallback, d.Kind)
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox", "tools", "new.py"), d.Path)
	assert.Equal(t, model.CommitNotApplicable, d.Commit.Status)
	assert.NoFileExists(t, filepath.Join(root, "tools", "new.py"))
	assert.Equal(t, 1, commitCount(t, root))
}

func TestSubmitBareNameUsesUniqueTrackedFile(t *testing.T) {
	root := initRepo(t, map[string]string{"pkg/deep/util.py": "x = 0\n"})
	app := newTestApp(t, root, nil)

	d, err := app.Submit(context.Background(), "@@mark@@   util.py  \nx = 1\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindTracked, d.Kind)
	assert.Equal(t, "pkg/deep/util.py", d.RelativePath)
	assert.Equal(t, model.CommitCommitted, d.Commit.Status)
	assert.Equal(t, "x = 1\n", readFile(t, d.Path))
}

func TestSubmitAmbiguousBasenameFallsBack(t *testing.T) {
	root := initRepo(t, map[string]string{
		"a/util.py": "a = 0\n",
		"b/util.py": "b = 0\n",
	})
	app := newTestApp(t, root, nil)

	d, err := app.Submit(context.Background(), "@@MARK@@ util.py\nx = 1\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindFallback, d.Kind)
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox", "util.py"), d.Path)
	assert.Equal(t, "a = 0\n", readFile(t, filepath.Join(root, "a", "util.py")))
	assert.Equal(t, "b = 0\n", readFile(t, filepath.Join(root, "b", "util.py")))
	assert.Equal(t, 1, commitCount(t, root))
}

func TestSubmitTraversalStaysInsideRoots(t *testing.T) {
	root := tempRoot(t)
	app := newTestApp(t, root, noGit)
	saveDir := filepath.Join(root, ".codedrop", "inbox")

	for _, name := range []string{"../../etc/passwd", "/etc/passwd", "a/../../../x.sh", "..\\..\\win.ini"} {
		t.Run(name, func(t *testing.T) {
			d, err := app.Submit(context.Background(), "@@MARK@@ "+name+"\necho pwned\n")
			require.NoError(t, err)
			if d.Kind == model.KindRejected {
				return
			}
			rel, err := filepath.Rel(saveDir, d.Path)
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(rel, ".."), "path %s escaped %s", d.Path, saveDir)
		})
	}
}

func TestSubmitSymlinkEscapeIsRejected(t *testing.T) {
	root := tempRoot(t)
	outside := tempRoot(t)
	app := newTestApp(t, root, noGit)
	require.NoError(t, os.Symlink(outside, filepath.Join(root, ".codedrop", "inbox", "out")))

	d, err := app.Submit(context.Background(), "@@MARK@@ out/x.sh\necho pwned\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindRejected, d.Kind)
	assert.Equal(t, "escapes save directory", d.Reason)
	assert.Equal(t, "out/x.sh", d.FilenameHint)
	assert.Equal(t, model.WriteSkipped, d.Write.Status)
	assert.Equal(t, model.CommitNotApplicable, d.Commit.Status)
	assert.Equal(t, model.ExecNotExecuted, d.Execution.Status)
	assert.NoFileExists(t, filepath.Join(outside, "x.sh"))
}

func TestSubmitEmptyPayload(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)

	for _, payload := range []string{"", "   ", "\n\t\r\n"} {
		_, err := app.Submit(context.Background(), payload)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	}
	entries, err := app.History(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitWriteFailureSkipsExecution(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	root := tempRoot(t)
	app := newTestApp(t, root, func(cfg *config.Config) {
		noGit(cfg)
		cfg.AutoRun.Shell = true
	})
	blocker := filepath.Join(root, ".codedrop", "inbox", "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))

	d, err := app.Submit(context.Background(), "@@MARK@@ blocker/run.sh\necho hi\n")
	require.NoError(t, err)

	assert.Equal(t, model.KindFallback, d.Kind)
	assert.Equal(t, model.WriteFailed, d.Write.Status)
	assert.NotEmpty(t, d.Write.Error)
	assert.Equal(t, model.ExecNotExecuted, d.Execution.Status)
}

func TestSubmitRunsShellScript(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	app := newTestApp(t, tempRoot(t), func(cfg *config.Config) {
		noGit(cfg)
		cfg.AutoRun.Shell = true
	})

	d, err := app.Submit(context.Background(), "@@MARK@@ run.sh\necho hi\n")
	require.NoError(t, err)

	assert.Equal(t, model.ExecOK, d.Execution.Status, d.Execution.Stderr)
	assert.Equal(t, model.ScriptShell, d.Execution.Kind)
	assert.Equal(t, "hi\n", d.Execution.Stdout)
}

func TestSubmitUnwrapsMarkdown(t *testing.T) {
	root := tempRoot(t)
	app := newTestApp(t, root, func(cfg *config.Config) {
		noGit(cfg)
		cfg.UnwrapMarkdown = true
	})

	d, err := app.Submit(context.Background(), "Here is `notes/todo.py`:\n\n```python\nprint(4)\n```\n")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox", "notes", "todo.py"), d.Path)
	assert.Equal(t, "print(4)\n", readFile(t, d.Path))
}

func TestExecuteUnwrapsNestedFenceOnce(t *testing.T) {
	root := tempRoot(t)
	app := newTestApp(t, root, func(cfg *config.Config) {
		noGit(cfg)
		cfg.UnwrapMarkdown = true
	})
	payload := "Save as `README.md`:\n\n````markdown\n# Title\n\n```sh\necho hi\n```\n````\n"

	summary, err := app.Execute(context.Background(), staticSource{content: payload})
	require.NoError(t, err)
	require.NotNil(t, summary.Disposition)

	d := summary.Disposition
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox", "README.md"), d.Path)
	assert.Equal(t, "# Title\n\n```sh\necho hi\n```\n", readFile(t, d.Path))
}

func TestAppsSharingAGateAreSerialized(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not installed")
	}
	shared := gate.New(0)
	trace := filepath.Join(t.TempDir(), "trace")
	apps := make([]*App, 2)
	for i := range apps {
		cfg, err := config.Default(tempRoot(t))
		require.NoError(t, err)
		cfg.VersionControlled = false
		cfg.AutoRun.Shell = true
		apps[i], err = New(cfg, Options{Logger: logging.Discard(), Gate: shared})
		require.NoError(t, err)
		t.Cleanup(apps[i].Close)
	}

	var wg sync.WaitGroup
	for i, app := range apps {
		wg.Add(1)
		go func(i int, app *App) {
			defer wg.Done()
			payload := fmt.Sprintf("@@MARK@@ job%d.sh\necho start >> %q\nsleep 1\necho end >> %q\n", i, trace, trace)
			d, err := app.Submit(context.Background(), payload)
			assert.NoError(t, err)
			assert.Equal(t, model.ExecOK, d.Execution.Status, d.Execution.Stderr)
		}(i, app)
	}
	wg.Wait()

	assert.Equal(t, "start\nend\nstart\nend\n", readFile(t, trace))
}

func TestSubmitUsesContextSubmissionID(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)

	d, err := app.Submit(WithSubmissionID(context.Background(), "req-42"), "@@MARK@@ a.txt\nhi\n")
	require.NoError(t, err)
	assert.Equal(t, "req-42", d.ID)

	d, err = app.Submit(context.Background(), "@@MARK@@ b.txt\nhi\n")
	require.NoError(t, err)
	assert.Len(t, d.ID, 36)
}

func TestSubmitRecordsHistory(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)

	first, err := app.Submit(context.Background(), "@@MARK@@ a.txt\none\n")
	require.NoError(t, err)
	second, err := app.Submit(context.Background(), "@@MARK@@ b.txt\ntwo\n")
	require.NoError(t, err)

	entries, err := app.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, model.WriteWritten, entries[0].Write)
	assert.NotEmpty(t, entries[0].ContentHash)

	latest, err := app.History(1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, second.Path, latest[0].Path)
}

func TestSubmitJournalDisabled(t *testing.T) {
	app := newTestApp(t, tempRoot(t), func(cfg *config.Config) {
		noGit(cfg)
		cfg.Journal = false
	})

	_, err := app.Submit(context.Background(), "@@MARK@@ a.txt\none\n")
	require.NoError(t, err)
	entries, err := app.History(0)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestSubmitConcurrentCommitsAreSerialized(t *testing.T) {
	const n = 6
	files := map[string]string{}
	for i := 0; i < n; i++ {
		files[fmt.Sprintf("f%d.py", i)] = "v = 0\n"
	}
	root := initRepo(t, files)
	app := newTestApp(t, root, nil)

	var wg sync.WaitGroup
	results := make([]model.Disposition, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("@@MARK@@ f%d.py\nv = %d\n", i, i+1)
			results[i], errs[i] = app.Submit(context.Background(), payload)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, model.KindTracked, results[i].Kind)
		assert.Equal(t, model.CommitCommitted, results[i].Commit.Status, results[i].Commit.Detail)
	}
	assert.Equal(t, n+1, commitCount(t, root))
	assert.False(t, app.Busy())
}

func TestSubmitGateTimeout(t *testing.T) {
	app := newTestApp(t, tempRoot(t), func(cfg *config.Config) {
		noGit(cfg)
		cfg.LockTimeout = 50 * time.Millisecond
	})

	held := make(chan struct{})
	release := make(chan struct{})
	go app.gate.Do(context.Background(), func() {
		close(held)
		<-release
	})
	<-held

	_, err := app.Submit(context.Background(), "@@MARK@@ a.txt\nhi\n")
	close(release)

	assert.ErrorIs(t, err, ErrGateTimeout)
	assert.NoFileExists(t, filepath.Join(app.Config().SaveDir, "a.txt"))
}

func TestSubmitPanicIsRecovered(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)
	app.resolver = nil

	_, err := app.Submit(context.Background(), "print(1)")

	var detailed *DetailedError
	require.True(t, errors.As(err, &detailed), "got %v", err)
	assert.Contains(t, detailed.Error(), "internal panic")
	assert.NotEmpty(t, detailed.Stack)
	assert.False(t, app.Busy(), "gate must be released after a panic")
}

func TestSubmitRecordsMetrics(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)

	_, err := app.Submit(context.Background(), "@@MARK@@ a.txt\nhi\n")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(app.Registry(), "codedrop_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = testutil.GatherAndCount(app.Registry(), "codedrop_gate_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type staticSource struct {
	content string
	err     error
}

func (s staticSource) GetContent() (string, error) { return s.content, s.err }

func TestExecute(t *testing.T) {
	app := newTestApp(t, tempRoot(t), noGit)

	summary, err := app.Execute(context.Background(), staticSource{})
	require.NoError(t, err)
	assert.Nil(t, summary.Disposition)
	assert.Contains(t, summary.Message, "empty")

	summary, err = app.Execute(context.Background(), staticSource{content: "@@MARK@@ a.txt\nhi\n"})
	require.NoError(t, err)
	require.NotNil(t, summary.Disposition)
	assert.Equal(t, model.KindFallback, summary.Disposition.Kind)

	_, err = app.Execute(context.Background(), staticSource{err: errors.New("no clipboard")})
	assert.ErrorContains(t, err, "no clipboard")
}
