package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sokinpui/codedrop/internal/fs"
	"github.com/sokinpui/codedrop/model"
)

const (
	stateDirName    = ".codedrop"
	journalFileName = "journal"
	fieldsPerEntry  = 8
	emptyField      = "-"
)

// Manager owns the submission journal under the working root.
type Manager struct {
	mu          sync.Mutex
	journalPath string
}

// New creates the state directory under rootDir if needed.
func New(rootDir string) (*Manager, error) {
	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	return &Manager{
		journalPath: filepath.Join(stateDir, journalFileName),
	}, nil
}

// Path returns the journal file location.
func (m *Manager) Path() string {
	return m.journalPath
}

// CreateEntry builds a journal entry for a finished disposition. The content
// hash is taken from the file on disk.
func CreateEntry(d model.Disposition, now time.Time) model.JournalEntry {
	entry := model.JournalEntry{
		Timestamp: now.UTC().Truncate(time.Second),
		ID:        d.ID,
		Kind:      d.Kind,
		Path:      d.Path,
		Write:     d.Write.Status,
		Commit:    d.Commit.Status,
		Execution: d.Execution.Status,
	}
	if d.Path != "" {
		if hash, err := fs.GetFileSHA256(d.Path); err == nil {
			entry.ContentHash = hash
		}
	}
	return entry
}

// Record appends one entry to the journal.
func (m *Manager) Record(entry model.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.journalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("could not open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(encode(entry)); err != nil {
		return fmt.Errorf("could not append to journal: %w", err)
	}
	return nil
}

// Recent returns up to n of the newest entries, newest first. n <= 0 returns all.
func (m *Manager) Recent(n int) ([]model.JournalEntry, error) {
	m.mu.Lock()
	data, err := os.ReadFile(m.journalPath)
	m.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries, err := decode(string(data))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// encode renders an entry as a block of lines terminated by a blank line.
func encode(e model.JournalEntry) string {
	lines := []string{
		strconv.FormatInt(e.Timestamp.Unix(), 10),
		field(e.ID),
		field(string(e.Kind)),
		field(e.Path),
		field(string(e.Write)),
		field(string(e.Commit)),
		field(string(e.Execution)),
		field(e.ContentHash),
	}
	return strings.Join(lines, "\n") + "\n\n"
}

func decode(content string) ([]model.JournalEntry, error) {
	// Normalize line endings to LF
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var entries []model.JournalEntry
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		for i, line := range lines {
			if line == emptyField {
				lines[i] = ""
			}
		}
		if len(lines) != fieldsPerEntry {
			return nil, fmt.Errorf("invalid journal: entry has %d fields, want %d", len(lines), fieldsPerEntry)
		}
		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid journal: could not parse timestamp from '%s': %w", lines[0], err)
		}
		entries = append(entries, model.JournalEntry{
			Timestamp:   time.Unix(ts, 0).UTC(),
			ID:          lines[1],
			Kind:        model.ResolutionKind(lines[2]),
			Path:        lines[3],
			Write:       model.WriteStatus(lines[4]),
			Commit:      model.CommitStatus(lines[5]),
			Execution:   model.ExecutionStatus(lines[6]),
			ContentHash: lines[7],
		})
	}
	return entries, nil
}

// field keeps empty values from producing blank lines, which separate entries.
func field(s string) string {
	if s == "" {
		return emptyField
	}
	return s
}
