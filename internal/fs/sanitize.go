package fs

import (
	"regexp"
	"strings"
)

// MaxFilenameLength caps a sanitized filename, counted in runes.
const MaxFilenameLength = 200

var disallowedRun = regexp.MustCompile(`[^\p{L}\p{N}_./-]+`)

// Sanitize turns an arbitrary filename hint into a relative path fragment made
// of word characters, dots, hyphens and forward slashes. Disallowed characters
// are deleted, not replaced. Empty, "." and ".." segments are dropped so the
// result never starts with a separator and never climbs out of its root.
// An empty result means the hint is unusable.
func Sanitize(name string) string {
	cleaned := disallowedRun.ReplaceAllString(strings.TrimSpace(name), "")
	if runes := []rune(cleaned); len(runes) > MaxFilenameLength {
		cleaned = string(runes[:MaxFilenameLength])
	}

	segments := strings.Split(cleaned, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, "/")
}

// IsBareName reports whether a sanitized path has no directory component.
func IsBareName(sanitized string) bool {
	return sanitized != "" && !strings.Contains(sanitized, "/")
}
