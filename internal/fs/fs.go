package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WriteFile persists content at path, creating parent directories as needed.
// Existing files keep their permission bits.
func WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory '%s': %w", dir, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}

// GetFileSHA256 returns the hex encoded SHA256 of the file at path.
func GetFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var shebangRegex = regexp.MustCompile(`^#![^\n]*?\b(bash|zsh|sh|python[0-9.]*)\b`)

// GenerateName builds a unique timestamped filename for a submission that
// carried no usable filename hint. The extension follows the body's shebang
// when it names a known interpreter, else defaultExt.
func GenerateName(now time.Time, body, defaultExt string) string {
	ext := defaultExt
	if match := shebangRegex.FindStringSubmatch(strings.TrimPrefix(body, "\ufeff")); match != nil {
		if strings.HasPrefix(match[1], "python") {
			ext = ".py"
		} else {
			ext = ".sh"
		}
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("submission_%s_%s%s", now.Format("20060102_150405"), suffix, ext)
}
