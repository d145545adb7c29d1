package sandbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sokinpui/codedrop/model"
)

// capability describes what the sandbox can do for one script kind.
type capability struct {
	// syntaxCheck runs "<interpreter> -n <file>" before executing.
	syntaxCheck bool
	// environment returns an interpreter tied to the current process
	// environment, tried before the conventional names.
	environment func() string
	// candidates are conventional executable names looked up on PATH.
	candidates []string
}

var capabilities = map[model.ScriptKind]capability{
	model.ScriptPython: {
		environment: virtualenvPython,
		candidates:  []string{"python3", "python"},
	},
	model.ScriptShell: {
		syntaxCheck: true,
		candidates:  []string{"bash", "sh"},
	},
}

var kindByExt = map[string]model.ScriptKind{
	".py":   model.ScriptPython,
	".sh":   model.ScriptShell,
	".bash": model.ScriptShell,
}

// KindForPath maps a file extension onto a script kind.
func KindForPath(path string) model.ScriptKind {
	if kind, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return model.ScriptUnknown
}

// ParseKind maps a configuration key onto a script kind.
func ParseKind(name string) model.ScriptKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py":
		return model.ScriptPython
	case "shell", "sh", "bash":
		return model.ScriptShell
	default:
		return model.ScriptUnknown
	}
}

func virtualenvPython() string {
	venv := os.Getenv("VIRTUAL_ENV")
	if venv == "" {
		return ""
	}
	return filepath.Join(venv, "bin", "python")
}

// resolveInterpreter tries the configured interpreter, then the environment
// strategy of the kind, then the conventional names.
func resolveInterpreter(kind model.ScriptKind, configured string) (string, bool) {
	capab, ok := capabilities[kind]
	if !ok {
		return "", false
	}
	var tries []string
	if configured != "" {
		tries = append(tries, configured)
	}
	if capab.environment != nil {
		if p := capab.environment(); p != "" {
			tries = append(tries, p)
		}
	}
	tries = append(tries, capab.candidates...)

	for _, name := range tries {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}
