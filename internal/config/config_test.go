package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/codedrop/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codedrop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "working_root: "+root+"\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.WorkingRoot)
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox"), cfg.SaveDir)
	assert.True(t, cfg.VersionControlled)
	assert.Equal(t, "@@MARK@@", cfg.MarkerToken)
	assert.Equal(t, ".txt", cfg.DefaultExtension)
	assert.False(t, cfg.AutoRun.Python)
	assert.False(t, cfg.AutoRun.Shell)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Execute)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.SyntaxCheck)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.GitQuery)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.GitCommit)
	assert.Equal(t, time.Duration(0), cfg.LockTimeout)
	assert.True(t, cfg.Journal)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
working_root: `+root+`
save_dir: captures
version_controlled: false
default_extension: py
auto_run:
  python: true
  shell: true
interpreters:
  python: /opt/py/bin/python3
timeouts:
  execute: 3s
lock_timeout: 250ms
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "captures"), cfg.SaveDir)
	assert.False(t, cfg.VersionControlled)
	assert.Equal(t, ".py", cfg.DefaultExtension)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Execute)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, map[model.ScriptKind]bool{model.ScriptPython: true, model.ScriptShell: true}, cfg.AutoRunKinds())
	assert.Equal(t, "/opt/py/bin/python3", cfg.InterpreterPaths()[model.ScriptPython])
}

func TestLoadPrecedence(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "working_root: "+root+"\nserver:\n  addr: 0.0.0.0:1\nauto_run:\n  shell: false\n")
	t.Setenv("CODEDROP_SERVER_ADDR", "0.0.0.0:2")
	t.Setenv("CODEDROP_MARKER_TOKEN", "##FILE##")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("run-shell", false, "")
	flags.String("addr", "", "")
	flags.Duration("lock-timeout", 0, "")
	require.NoError(t, flags.Parse([]string{"--run-shell", "--addr", "0.0.0.0:3", "--lock-timeout", "2s"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.True(t, cfg.AutoRun.Shell)
	assert.Equal(t, "0.0.0.0:3", cfg.Server.Addr)
	assert.Equal(t, "##FILE##", cfg.MarkerToken)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
}

func TestLoadUnchangedFlagsKeepFileValues(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "working_root: "+root+"\nauto_run:\n  python: true\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("run-python", false, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.True(t, cfg.AutoRun.Python)
}

func TestLoadNvimAddressFromEnv(t *testing.T) {
	path := writeConfig(t, "working_root: "+t.TempDir()+"\n")
	t.Setenv("NVIM_LISTEN_ADDRESS", "/tmp/nvim.sock")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/nvim.sock", cfg.Nvim.Address)
}

func TestDefault(t *testing.T) {
	root := t.TempDir()
	cfg, err := Default(root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.WorkingRoot)
	assert.Equal(t, filepath.Join(root, ".codedrop", "inbox"), cfg.SaveDir)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Execute)
	assert.True(t, cfg.VersionControlled)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{WorkingRoot: "/srv", MarkerToken: "@@MARK@@"}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.WorkingRoot = " "
	assert.Error(t, c.Validate())

	c = base()
	c.MarkerToken = "@@ MARK"
	assert.Error(t, c.Validate())

	c = base()
	c.Timeouts.Execute = -time.Second
	assert.Error(t, c.Validate())
}
