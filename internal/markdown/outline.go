// Package markdown derives structural outlines from extracted markdown.
package markdown

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Heading is one H1 or H2 entry in a document outline.
type Heading struct {
	Title string `json:"title"`
	Depth int    `json:"depth"` // 1 for H1, 2 for H2
	ID    string `json:"id"`    // anchor id assigned by the parser
}

// Outliner extracts H1/H2 outlines from markdown documents.
type Outliner struct {
	parser goldmark.Markdown
}

// NewOutliner creates an outliner with a goldmark parser configured for
// automatic heading IDs.
func NewOutliner() *Outliner {
	return &Outliner{
		parser: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Outline parses the document and returns its H1/H2 headings in document
// order. A document without headings yields an empty outline, not an error.
func (o *Outliner) Outline(source []byte) ([]Heading, error) {
	reader := text.NewReader(source)
	doc := o.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []Heading
	flatten(tree.Items, 1, &headings)
	return headings, nil
}

// flatten walks the TOC tree depth-first, recording each item at its depth.
func flatten(items toc.Items, depth int, out *[]Heading) {
	for _, item := range items {
		*out = append(*out, Heading{
			Title: string(item.Title),
			Depth: depth,
			ID:    string(item.ID),
		})
		if len(item.Items) > 0 {
			flatten(item.Items, depth+1, out)
		}
	}
}
