// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// =============================================================================
// NODE TYPES
// =============================================================================

// BlockKind identifies a block-level node.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockBulletList
	BlockOrderedList
	BlockCode
)

// InlineKind identifies an inline span.
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineStrong
	InlineEmphasis
	InlineCode
)

// Inline is a run of text with a single style.
type Inline struct {
	Kind InlineKind
	Text string
}

// Block is one block-level node.
type Block struct {
	Kind BlockKind

	// Level is the heading level, clamped to 1-3.
	Level int

	// Inlines holds the content of headings and paragraphs.
	Inlines []Inline

	// Items holds one inline run per list item.
	Items [][]Inline

	// Start is the first number of an ordered list.
	Start int

	// Code and Language describe a code block.
	Code     string
	Language string
}

// PlainText returns the inline run without styling.
func PlainText(inlines []Inline) string {
	var sb strings.Builder
	for _, in := range inlines {
		sb.WriteString(in.Text)
	}
	return sb.String()
}

// =============================================================================
// PARSING
// =============================================================================

var parser = goldmark.New().Parser()

// Parse converts markdown source into blocks. Partial input (such as a
// revealed prefix) is valid and parses to whatever structure it contains.
func Parse(source string) []Block {
	src := []byte(source)
	doc := parser.Parse(text.NewReader(src))

	var blocks []Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = appendBlocks(blocks, n, src)
	}
	return blocks
}

func appendBlocks(blocks []Block, n ast.Node, src []byte) []Block {
	switch node := n.(type) {
	case *ast.Heading:
		level := node.Level
		if level > 3 {
			level = 3
		}
		return append(blocks, Block{Kind: BlockHeading, Level: level, Inlines: inlines(node, src)})

	case *ast.Paragraph, *ast.TextBlock:
		if in := inlines(node, src); len(in) > 0 {
			return append(blocks, Block{Kind: BlockParagraph, Inlines: in})
		}
		return blocks

	case *ast.List:
		b := Block{Kind: BlockBulletList}
		if node.IsOrdered() {
			b.Kind = BlockOrderedList
			b.Start = node.Start
		}
		b.Items = listItems(nil, node, src)
		return append(blocks, b)

	case *ast.FencedCodeBlock:
		return append(blocks, Block{
			Kind:     BlockCode,
			Code:     codeLines(node, src),
			Language: string(node.Language(src)),
		})

	case *ast.CodeBlock:
		return append(blocks, Block{Kind: BlockCode, Code: codeLines(node, src)})

	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			blocks = appendBlocks(blocks, c, src)
		}
		return blocks

	case *ast.HTMLBlock:
		raw := strings.TrimSpace(codeLines(node, src))
		if raw == "" {
			return blocks
		}
		return append(blocks, Block{Kind: BlockParagraph, Inlines: []Inline{{Kind: InlineText, Text: raw}}})
	}

	// Thematic breaks and unknown nodes carry no text.
	return blocks
}

// listItems flattens nested lists into the parent's item sequence.
func listItems(items [][]Inline, list *ast.List, src []byte) [][]Inline {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var run []Inline
		var nested []*ast.List
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if len(run) > 0 {
				run = append(run, Inline{Kind: InlineText, Text: " "})
			}
			run = append(run, inlines(c, src)...)
		}
		items = append(items, merge(run))
		for _, sub := range nested {
			items = listItems(items, sub, src)
		}
	}
	return items
}

func codeLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// INLINES
// =============================================================================

func inlines(n ast.Node, src []byte) []Inline {
	var out []Inline
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = appendInline(out, c, src, InlineText)
	}
	return merge(out)
}

// appendInline walks an inline node. kind is the style inherited from an
// enclosing emphasis; code spans always keep their own kind.
func appendInline(out []Inline, n ast.Node, src []byte, kind InlineKind) []Inline {
	switch node := n.(type) {
	case *ast.Text:
		out = append(out, Inline{Kind: kind, Text: string(node.Segment.Value(src))})
		if node.HardLineBreak() {
			out = append(out, Inline{Kind: kind, Text: "\n"})
		} else if node.SoftLineBreak() {
			out = append(out, Inline{Kind: kind, Text: " "})
		}
		return out

	case *ast.String:
		return append(out, Inline{Kind: kind, Text: string(node.Value)})

	case *ast.CodeSpan:
		return append(out, Inline{Kind: InlineCode, Text: plain(node, src)})

	case *ast.Emphasis:
		inner := InlineEmphasis
		if node.Level >= 2 {
			inner = InlineStrong
		}
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			out = appendInline(out, c, src, inner)
		}
		return out

	case *ast.AutoLink:
		return append(out, Inline{Kind: kind, Text: string(node.URL(src))})

	case *ast.RawHTML:
		var sb strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			sb.Write(seg.Value(src))
		}
		return append(out, Inline{Kind: kind, Text: sb.String()})
	}

	// Links, images and anything else contribute their visible text.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = appendInline(out, c, src, kind)
	}
	return out
}

func plain(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(plain(c, src))
		}
	}
	return sb.String()
}

// merge joins adjacent runs of the same kind and drops empty ones.
func merge(in []Inline) []Inline {
	var out []Inline
	for _, r := range in {
		if r.Text == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Kind == r.Kind {
			out[len(out)-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	if len(out) > 0 {
		last := &out[len(out)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text == "" {
			out = out[:len(out)-1]
		}
	}
	return out
}
