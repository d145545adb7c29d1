package marker

import (
	"regexp"
	"strings"
)

// DefaultToken is the directive token recognised at the start of a payload.
const DefaultToken = "@@MARK@@"

// Marker is a filename directive found on the first line of a payload.
type Marker struct {
	// Filename is the trimmed filename exactly as written after the token.
	Filename string
	// BodyOffset is the byte offset where the code body starts.
	BodyOffset int
}

// Extractor finds filename directives for a configured token.
type Extractor struct {
	re *regexp.Regexp
}

// New creates an Extractor for token. An empty token falls back to DefaultToken.
func New(token string) *Extractor {
	if token == "" {
		token = DefaultToken
	}
	return &Extractor{
		re: regexp.MustCompile(`(?i)^[ \t]*` + regexp.QuoteMeta(token) + `[ \t]+(\S.*?)[ \t]*$`),
	}
}

// Extract looks at the first line of payload only. When it holds a directive
// the returned body has that line, including its line ending, removed.
// Otherwise the marker is nil and body is payload verbatim.
func (e *Extractor) Extract(payload string) (*Marker, string) {
	line := payload
	end := len(payload)
	if idx := strings.IndexByte(payload, '\n'); idx >= 0 {
		line = payload[:idx]
		end = idx + 1
	}
	line = strings.TrimSuffix(line, "\r")

	match := e.re.FindStringSubmatch(line)
	if match == nil {
		return nil, payload
	}
	name := strings.TrimSpace(match[1])
	if name == "" {
		return nil, payload
	}
	return &Marker{Filename: name, BodyOffset: end}, payload[end:]
}

// Line renders a directive line for filename using token.
func Line(token, filename string) string {
	if token == "" {
		token = DefaultToken
	}
	return token + " " + filename
}
