package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// SourceProvider determines and retrieves the submission payload.
type SourceProvider struct {
	stdin         *os.File
	readClipboard func() (string, error)
}

// New creates a SourceProvider reading from the process stdin or clipboard.
// Content is returned verbatim; markdown unwrapping belongs to the pipeline.
func New() *SourceProvider {
	return &SourceProvider{
		stdin:         os.Stdin,
		readClipboard: clipboard.ReadAll,
	}
}

// GetContent retrieves content from stdin (if piped) or the clipboard.
// Whitespace-only content is reported as empty.
func (sp *SourceProvider) GetContent() (string, error) {
	var content string
	if isPiped(sp.stdin) {
		data, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		content = string(data)
	} else {
		data, err := sp.readClipboard()
		if err != nil {
			return "", fmt.Errorf("failed to read from clipboard: %w", err)
		}
		content = data
	}

	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	return content, nil
}

func isPiped(f *os.File) bool {
	if f == nil {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
