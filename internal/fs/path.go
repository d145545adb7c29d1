package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// Canonicalize returns the absolute, cleaned form of path with symlinks
// resolved for every component that exists. Missing trailing components are
// appended unchanged, so paths of files that are about to be created still
// normalize.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var missing []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	for i := len(missing) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, missing[i])
	}
	return resolved, nil
}

// Contains reports whether target is a strict descendant of root. Both paths
// should already be canonical. The check compares path components, so a
// sibling such as "/srv/repo-old" is never inside "/srv/repo".
func Contains(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
