package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock represents a fenced code block from markdown content.
type CodeBlock struct {
	// Hint is the raw source of the paragraph immediately preceding the block.
	Hint string
	// Lang is the info string of the block (e.g., "python", "diff").
	Lang string
	// Content is the raw text inside the block.
	Content string
}

// ExtractCodeBlocks uses a markdown AST to find all fenced code blocks
// and their preceding paragraph, which is treated as a hint.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		if fenced.Info != nil {
			block.Lang = strings.TrimSpace(string(fenced.Info.Segment.Value(source)))
		}
		block.Content = rawLines(fenced.Lines(), source)

		if p, ok := fenced.PreviousSibling().(*ast.Paragraph); ok {
			// Raw source keeps backticks around inline code, which Text drops.
			block.Hint = strings.TrimSpace(rawLines(p.Lines(), source))
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}

func rawLines(lines *text.Segments, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}
