package vcs

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sokinpui/codedrop/internal/diffstat"
	"github.com/sokinpui/codedrop/internal/fs"
	"github.com/sokinpui/codedrop/model"
)

// nothingToCommit lists git messages that mean the commit had no effect.
var nothingToCommit = []string{
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
	"working tree clean",
}

// CommitMessage is the message used for a tracked file update.
func CommitMessage(relPath string) string {
	return "codedrop: update " + relPath
}

// NormalizeNewlines converts CRLF line endings to LF. Only line endings are
// normalized; trailing spaces and tabs still count as changes.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Sync writes content to a tracked file only when it differs from what is on
// disk after newline normalization, then stages and commits exactly that path.
func (g *Git) Sync(ctx context.Context, relPath, absPath string, content []byte) (model.WriteOutcome, model.CommitOutcome) {
	log := g.log.WithField("path", relPath)

	newText := NormalizeNewlines(string(content))
	var oldText string
	current, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		oldText = NormalizeNewlines(string(current))
		if oldText == newText {
			log.Debug("content identical, skipping write and commit")
			return model.WriteOutcome{Status: model.WriteUnchanged},
				model.CommitOutcome{Status: model.CommitSkippedIdentical}
		}
	case !errors.Is(err, os.ErrNotExist):
		log.WithError(err).Warn("could not read current content")
	}

	if err := fs.WriteFile(absPath, content); err != nil {
		log.WithError(err).Error("write failed")
		return model.WriteOutcome{Status: model.WriteFailed, Error: err.Error()},
			model.CommitOutcome{Status: model.CommitNotApplicable, Detail: "write failed"}
	}
	stat := diffstat.Lines(oldText, newText)
	written := model.WriteOutcome{
		Status:  model.WriteWritten,
		Bytes:   len(content),
		Added:   stat.Added,
		Deleted: stat.Deleted,
	}

	if !g.Available(ctx) {
		return written, model.CommitOutcome{Status: model.CommitSkippedNoRepo}
	}
	return written, g.commit(ctx, relPath, log)
}

func (g *Git) commit(ctx context.Context, relPath string, log *logrus.Entry) model.CommitOutcome {
	if out, err := g.run(ctx, g.queryTimeout, "add", "--", relPath); err != nil {
		log.WithError(err).Warn("git add failed")
		return model.CommitOutcome{Status: model.CommitFailed, Detail: detail(out, err)}
	}

	msg := CommitMessage(relPath)
	out, err := g.run(ctx, g.commitTimeout, "commit", "-m", msg, "--", relPath)
	if err != nil {
		if isNothingToCommit(out) {
			log.Debug("nothing to commit after staging")
			return model.CommitOutcome{Status: model.CommitSkippedIdentical}
		}
		log.WithError(err).Warn("git commit failed")
		return model.CommitOutcome{Status: model.CommitFailed, Message: msg, Detail: detail(out, err)}
	}
	log.WithField("message", msg).Info("committed")
	return model.CommitOutcome{Status: model.CommitCommitted, Message: msg}
}

func isNothingToCommit(output string) bool {
	lower := strings.ToLower(output)
	for _, phrase := range nothingToCommit {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func detail(output string, err error) string {
	if out := strings.TrimSpace(output); out != "" {
		return out
	}
	return err.Error()
}
