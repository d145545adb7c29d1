package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sokinpui/codedrop/model"
)

// Config is the configuration record consumed by the submission pipeline and
// its collaborators.
type Config struct {
	WorkingRoot       string             `mapstructure:"working_root"`
	SaveDir           string             `mapstructure:"save_dir"`
	VersionControlled bool               `mapstructure:"version_controlled"`
	MarkerToken       string             `mapstructure:"marker_token"`
	DefaultExtension  string             `mapstructure:"default_extension"`
	AutoRun           AutoRunConfig      `mapstructure:"auto_run"`
	Interpreters      InterpretersConfig `mapstructure:"interpreters"`
	Timeouts          TimeoutsConfig     `mapstructure:"timeouts"`
	LockTimeout       time.Duration      `mapstructure:"lock_timeout"`
	UnwrapMarkdown    bool               `mapstructure:"unwrap_markdown"`
	Journal           bool               `mapstructure:"journal"`
	Nvim              NvimConfig         `mapstructure:"nvim"`
	Server            ServerConfig       `mapstructure:"server"`
	Log               LogConfig          `mapstructure:"log"`
}

type AutoRunConfig struct {
	Python bool `mapstructure:"python"`
	Shell  bool `mapstructure:"shell"`
}

type InterpretersConfig struct {
	Python string `mapstructure:"python"`
	Shell  string `mapstructure:"shell"`
}

type TimeoutsConfig struct {
	Execute     time.Duration `mapstructure:"execute"`
	SyntaxCheck time.Duration `mapstructure:"syntax_check"`
	GitQuery    time.Duration `mapstructure:"git_query"`
	GitCommit   time.Duration `mapstructure:"git_commit"`
}

type NvimConfig struct {
	Address string `mapstructure:"address"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"workdir":      "working_root",
	"save-dir":     "save_dir",
	"git":          "version_controlled",
	"marker":       "marker_token",
	"default-ext":  "default_extension",
	"run-python":   "auto_run.python",
	"run-shell":    "auto_run.shell",
	"lock-timeout": "lock_timeout",
	"markdown":     "unwrap_markdown",
	"journal":      "journal",
	"addr":         "server.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("working_root", "")
	v.SetDefault("save_dir", "")
	v.SetDefault("version_controlled", true)
	v.SetDefault("marker_token", "@@MARK@@")
	v.SetDefault("default_extension", ".txt")
	v.SetDefault("auto_run.python", false)
	v.SetDefault("auto_run.shell", false)
	v.SetDefault("interpreters.python", "")
	v.SetDefault("interpreters.shell", "")
	v.SetDefault("timeouts.execute", 15*time.Second)
	v.SetDefault("timeouts.syntax_check", 10*time.Second)
	v.SetDefault("timeouts.git_query", 5*time.Second)
	v.SetDefault("timeouts.git_commit", 15*time.Second)
	v.SetDefault("lock_timeout", time.Duration(0))
	v.SetDefault("unwrap_markdown", false)
	v.SetDefault("journal", true)
	v.SetDefault("nvim.address", "")
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.allow_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from an optional YAML file, CODEDROP_* environment
// variables and changed command-line flags, in increasing precedence.
// An explicit path must exist; the default search locations may be empty.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaultValues(v)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codedrop")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "codedrop"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CODEDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("nvim.address", "CODEDROP_NVIM_ADDRESS", "NVIM_LISTEN_ADDRESS"); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("could not bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration rooted at workingRoot, without
// reading any file, environment variable or flag.
func Default(workingRoot string) (*Config, error) {
	v := viper.New()
	setDefaultValues(v)
	v.Set("working_root", workingRoot)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// normalize fills derived defaults and makes roots absolute.
func (c *Config) normalize() error {
	if c.WorkingRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get current working directory: %w", err)
		}
		c.WorkingRoot = wd
	}
	root, err := filepath.Abs(c.WorkingRoot)
	if err != nil {
		return fmt.Errorf("invalid working root: %w", err)
	}
	c.WorkingRoot = root

	if c.SaveDir == "" {
		c.SaveDir = filepath.Join(c.WorkingRoot, ".codedrop", "inbox")
	} else if !filepath.IsAbs(c.SaveDir) {
		c.SaveDir = filepath.Join(c.WorkingRoot, c.SaveDir)
	}
	c.SaveDir = filepath.Clean(c.SaveDir)

	if c.DefaultExtension != "" && !strings.HasPrefix(c.DefaultExtension, ".") {
		c.DefaultExtension = "." + c.DefaultExtension
	}
	return nil
}

// Validate checks values that would make the pipeline misbehave.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WorkingRoot) == "" {
		return errors.New("working_root must not be empty")
	}
	if c.MarkerToken == "" || strings.ContainsAny(c.MarkerToken, " \t\r\n") {
		return fmt.Errorf("marker_token %q must be non-empty and contain no whitespace", c.MarkerToken)
	}
	durations := map[string]time.Duration{
		"timeouts.execute":      c.Timeouts.Execute,
		"timeouts.syntax_check": c.Timeouts.SyntaxCheck,
		"timeouts.git_query":    c.Timeouts.GitQuery,
		"timeouts.git_commit":   c.Timeouts.GitCommit,
		"lock_timeout":          c.LockTimeout,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

// AutoRunKinds returns the per-kind auto-execution switches.
func (c *Config) AutoRunKinds() map[model.ScriptKind]bool {
	return map[model.ScriptKind]bool{
		model.ScriptPython: c.AutoRun.Python,
		model.ScriptShell:  c.AutoRun.Shell,
	}
}

// InterpreterPaths returns configured interpreter overrides per kind.
func (c *Config) InterpreterPaths() map[model.ScriptKind]string {
	return map[model.ScriptKind]string{
		model.ScriptPython: c.Interpreters.Python,
		model.ScriptShell:  c.Interpreters.Shell,
	}
}
