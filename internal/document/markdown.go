// File path: internal/document/markdown.go
package document

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// convertMarkdown walks the goldmark AST and flattens block content into
// plain text lines. Thematic breaks are treated as page breaks for metadata.
func convertMarkdown(name string, data []byte, opts ConvertOptions) (*NormalizedText, error) {
	root := markdown.Parser().Parse(text.NewReader(data))
	var (
		lines      []string
		pageBreaks int
	)
	appendLine := func(line string) {
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			appendLine(string(node.Text(data)))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			segments := n.Lines()
			for i := 0; i < segments.Len(); i++ {
				seg := segments.At(i)
				appendLine(strings.TrimRight(string(seg.Value(data)), "\n"))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			segments := n.Lines()
			for i := 0; i < segments.Len(); i++ {
				seg := segments.At(i)
				appendLine(strings.TrimRight(string(seg.Value(data)), "\n"))
			}
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			pageBreaks++
			return ast.WalkContinue, nil
		case *extast.Table:
			if !opts.ExtractTables {
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		case *extast.TableHeader, *extast.TableRow:
			appendLine(tableRowText(n, data))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown %s: %w", name, err)
	}
	return &NormalizedText{
		Source: name,
		Lines:  lines,
		Meta: Metadata{
			PageCount: pageBreaks + 1,
			WordCount: countWords(lines),
			ByteSize:  len(data),
		},
	}, nil
}

func tableRowText(row ast.Node, source []byte) string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, strings.TrimSpace(string(cell.Text(source))))
	}
	return strings.Join(cells, " | ")
}
