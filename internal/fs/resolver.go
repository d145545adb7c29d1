package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sokinpui/codedrop/model"
)

// Rejection reasons.
const (
	ReasonNoFilename  = "no usable filename"
	ReasonEscapesRepo = "escapes repository root"
	ReasonEscapesSave = "escapes save directory"
)

// Locator answers tracked-file questions about the repository root.
type Locator interface {
	Available(ctx context.Context) bool
	Locate(ctx context.Context, basename string) (string, bool)
	IsTracked(ctx context.Context, relPath string) bool
}

// PathResolver decides where a sanitized filename lands: an existing tracked
// file under the repository root or a fallback file under the save directory.
type PathResolver struct {
	repoRoot string
	saveRoot string
	locator  Locator
	log      *logrus.Entry
}

// NewPathResolver canonicalizes both roots. The save directory is created if
// it does not exist yet. locator may be nil when version control is off.
func NewPathResolver(repoRoot, saveRoot string, locator Locator, log *logrus.Entry) (*PathResolver, error) {
	if err := os.MkdirAll(saveRoot, 0755); err != nil {
		return nil, fmt.Errorf("could not create save directory: %w", err)
	}
	repo, err := Canonicalize(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid working root '%s': %w", repoRoot, err)
	}
	save, err := Canonicalize(saveRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid save directory '%s': %w", saveRoot, err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PathResolver{repoRoot: repo, saveRoot: save, locator: locator, log: log}, nil
}

// RepoRoot returns the canonical repository root.
func (r *PathResolver) RepoRoot() string { return r.repoRoot }

// SaveRoot returns the canonical save directory.
func (r *PathResolver) SaveRoot() string { return r.saveRoot }

// Resolve produces exactly one decision for a sanitized filename.
func (r *PathResolver) Resolve(ctx context.Context, sanitized string) model.Decision {
	if sanitized == "" {
		return model.Decision{Kind: model.KindRejected, Reason: ReasonNoFilename}
	}
	if r.locator == nil || !r.locator.Available(ctx) {
		return r.ResolveFallback(sanitized)
	}

	candidate := sanitized
	if IsBareName(sanitized) {
		if rel, ok := r.locator.Locate(ctx, sanitized); ok {
			candidate = rel
		}
	}

	abs, err := Canonicalize(filepath.Join(r.repoRoot, filepath.FromSlash(candidate)))
	if err != nil || !Contains(r.repoRoot, abs) {
		r.log.WithField("candidate", candidate).Warn("candidate path escapes repository root")
		return model.Decision{Kind: model.KindRejected, Reason: ReasonEscapesRepo}
	}

	rel, err := filepath.Rel(r.repoRoot, abs)
	if err != nil {
		return model.Decision{Kind: model.KindRejected, Reason: ReasonEscapesRepo}
	}
	rel = filepath.ToSlash(rel)
	if r.locator.IsTracked(ctx, rel) {
		return model.Decision{Kind: model.KindTracked, RelativePath: rel, AbsolutePath: abs}
	}
	return r.ResolveFallback(sanitized)
}

// ResolveFallback places sanitized under the save directory.
func (r *PathResolver) ResolveFallback(sanitized string) model.Decision {
	if sanitized == "" {
		return model.Decision{Kind: model.KindRejected, Reason: ReasonNoFilename}
	}
	abs, err := Canonicalize(filepath.Join(r.saveRoot, filepath.FromSlash(sanitized)))
	if err != nil || !Contains(r.saveRoot, abs) {
		r.log.WithField("sanitized", sanitized).Warn("fallback path escapes save directory")
		return model.Decision{Kind: model.KindRejected, Reason: ReasonEscapesSave}
	}
	return model.Decision{Kind: model.KindFallback, AbsolutePath: abs}
}
