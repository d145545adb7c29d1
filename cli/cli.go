package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Config holds the command-line values that select a mode. Pipeline settings
// stay on the returned FlagSet and are bound into the configuration loader.
type Config struct {
	ConfigFile  string
	Serve       bool
	History     int
	NoAnimation bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string) (*Config, *pflag.FlagSet, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("codedrop", pflag.ContinueOnError)

	// Modes
	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "Path to a YAML config file.")
	flags.BoolVarP(&cfg.Serve, "serve", "s", false, "Accept submissions over HTTP instead of reading one payload.")
	flags.IntVar(&cfg.History, "history", 0, "Print the N most recent submissions and exit.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the loading spinner.")

	// Pipeline settings, bound to config keys.
	flags.StringP("workdir", "w", "", "Working root (repository checkout). Defaults to the current directory.")
	flags.String("save-dir", "", "Directory for submissions that match no tracked file.")
	flags.Bool("git", true, "Resolve and commit tracked files with git.")
	flags.String("marker", "", "Filename directive token (default \"@@MARK@@\").")
	flags.String("default-ext", "", "Extension for generated names (default \".txt\").")
	flags.Bool("run-python", false, "Execute saved Python files.")
	flags.Bool("run-shell", false, "Syntax-check and execute saved shell scripts.")
	flags.Duration("lock-timeout", 0, "Give up waiting for the submission gate after this long (0 waits forever).")
	flags.BoolP("markdown", "m", false, "Reduce markdown payloads to their first fenced code block.")
	flags.Bool("journal", true, "Record submissions in the journal.")
	flags.String("addr", "", "Listen address in --serve mode (default \"127.0.0.1:8765\").")
	flags.String("log-level", "", "Log level: debug, info, warn, error.")
	flags.String("log-format", "", "Log format: text, json.")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: codedrop [flags]")
		fmt.Fprintln(os.Stderr, "\nSave code from stdin (pipe) or clipboard into the working tree, commit it and optionally run it.")
		fmt.Fprintln(os.Stderr, "\nExample: pbpaste | codedrop --run-python")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}

	// Validate mutually exclusive flags
	if cfg.Serve && flags.Changed("history") {
		return nil, nil, errors.New("error: --serve and --history are mutually exclusive")
	}
	if cfg.History < 0 {
		return nil, nil, errors.New("error: --history must not be negative")
	}

	return cfg, flags, nil
}
