package codedrop

import (
	"context"
	"fmt"

	"github.com/sokinpui/codedrop/internal/config"
	"github.com/sokinpui/codedrop/internal/gate"
	"github.com/sokinpui/codedrop/internal/logging"
	"github.com/sokinpui/codedrop/internal/sandbox"
	"github.com/sokinpui/codedrop/model"
)

// Config for using codedrop as a library.
type Config struct {
	// WorkingRoot is the repository root. Defaults to the current directory.
	WorkingRoot string
	// SaveDir receives fallback files. Defaults to <WorkingRoot>/.codedrop/inbox.
	SaveDir string
	// NoGit disables version-control lookups and commits.
	NoGit bool
	// Run enables auto-execution per script kind (e.g., "python", "shell").
	Run []string
}

// processGate serializes every library Submit call in the process.
var processGate = gate.New(0)

// Submit runs content through the pipeline once and returns its disposition.
// Calls from any goroutine share one gate and run one at a time.
func Submit(content string, cfg Config) (model.Disposition, error) {
	appCfg, err := config.Default(cfg.WorkingRoot)
	if err != nil {
		return model.Disposition{}, err
	}
	if cfg.SaveDir != "" {
		appCfg.SaveDir = cfg.SaveDir
	}
	appCfg.VersionControlled = !cfg.NoGit
	appCfg.Journal = false
	for _, k := range cfg.Run {
		switch sandbox.ParseKind(k) {
		case model.ScriptPython:
			appCfg.AutoRun.Python = true
		case model.ScriptShell:
			appCfg.AutoRun.Shell = true
		default:
			return model.Disposition{}, fmt.Errorf("unknown script kind %q", k)
		}
	}

	app, err := New(appCfg, Options{Logger: logging.Discard(), Gate: processGate})
	if err != nil {
		return model.Disposition{}, fmt.Errorf("failed to initialize codedrop app: %w", err)
	}
	defer app.Close()

	return app.Submit(context.Background(), content)
}
