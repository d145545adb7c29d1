package nvim

import (
	"fmt"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
	"github.com/sirupsen/logrus"
)

// Manager holds a connection to a running Neovim instance and asks it to
// reload buffers whose files were rewritten on disk.
type Manager struct {
	nvim *nvim.Nvim
	log  *logrus.Entry
}

// New connects to the Neovim instance listening on addr. An empty addr
// disables reloading and returns a nil Manager, which is safe to use.
func New(addr string, log *logrus.Entry) (*Manager, error) {
	if addr == "" {
		return nil, nil
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nvim at %s: %w", addr, err)
	}
	return &Manager{nvim: v, log: log}, nil
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m == nil || m.nvim == nil {
		return
	}
	m.nvim.Close()
}

// Reload triggers checktime on the buffer holding path, if one is loaded.
// Failures are logged and never reported to the caller.
func (m *Manager) Reload(path string) {
	if m == nil || m.nvim == nil || path == "" {
		return
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	var bufnr int
	if err := m.nvim.Call("bufnr", &bufnr, absPath); err != nil {
		m.log.WithError(err).Debug("bufnr lookup failed")
		return
	}
	if bufnr <= 0 {
		return
	}

	b := m.nvim.NewBatch()
	b.Command(fmt.Sprintf("checktime %d", bufnr))
	if err := b.Execute(); err != nil {
		m.log.WithError(err).WithField("path", absPath).Warn("nvim reload failed")
	}
}
