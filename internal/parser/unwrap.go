package parser

import (
	"regexp"
	"strings"

	"github.com/sokinpui/codedrop/internal/marker"
)

var pathInHintRegex = regexp.MustCompile("`([^`\n]+)`")

// Unwrap reduces a markdown payload to the content of its first non-diff
// fenced code block. A directive line on the payload itself is kept, and when
// the block has none, a backticked path in the preceding paragraph becomes
// one. Payloads without fenced blocks are returned unchanged.
func Unwrap(payload, token string) string {
	ex := marker.New(token)
	directive, body := ex.Extract(payload)

	blocks, err := ExtractCodeBlocks([]byte(body))
	if err != nil {
		return payload
	}
	for _, block := range blocks {
		if block.Lang == "diff" {
			continue
		}
		content := block.Content
		if inner, _ := ex.Extract(content); inner != nil {
			return content
		}
		switch {
		case directive != nil:
			return marker.Line(token, directive.Filename) + "\n" + content
		default:
			if path := extractPathFromHint(block.Hint); path != "" {
				return marker.Line(token, path) + "\n" + content
			}
			return content
		}
	}
	return payload
}

func extractPathFromHint(hint string) string {
	hint = strings.TrimSpace(hint)

	// A path hint must be enclosed in backticks, e.g., `path/to/file.go`
	if match := pathInHintRegex.FindStringSubmatch(hint); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		// Disallow spaces to avoid capturing commands like `go run main.go` as a path.
		if !strings.Contains(path, " ") {
			return path
		}
	}
	return ""
}
