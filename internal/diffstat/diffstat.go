package diffstat

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stat counts whole lines added and deleted between two texts.
type Stat struct {
	Added   int
	Deleted int
}

// Lines computes a line-level diff between oldText and newText.
func Lines(oldText, newText string) Stat {
	if oldText == newText {
		return Stat{}
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var stat Stat
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stat.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			stat.Deleted += countLines(d.Text)
		}
	}
	return stat
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
