// Package markdown converts markdown documents to the plain text the index
// works on, optionally split into sections at H1 and H2 boundaries.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"gopkg.in/yaml.v3"
)

// Section is a document slice under one H1 or H2 heading.
type Section struct {
	Index      int    // Position in document (0, 1, 2...)
	HeaderPath string // Hierarchy: "Doc Title > Section Name"
	Title      string // Heading text, empty for text before the first heading
	Text       string // Plain text of the section body
}

// Converter turns markdown into plain text.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a converter configured with the goldmark parser.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Extract returns the document title and its plain text. The title is taken
// from YAML front matter when present, otherwise from the first H1.
func (c *Converter) Extract(source []byte) (title, body string, err error) {
	fmTitle, content := splitFrontMatter(source)
	doc := c.md.Parser().Parse(text.NewReader(content))

	title = fmTitle
	if title == "" {
		title, err = firstHeading(doc, content)
		if err != nil {
			return "", "", err
		}
	}

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if s := plainText(n, content); s != "" {
			blocks = append(blocks, s)
		}
	}
	return title, strings.Join(blocks, "\n\n"), nil
}

// Sections splits the document at H1 and H2 headings. Text before the first
// heading forms an untitled section. Sections without body text are dropped.
func (c *Converter) Sections(source []byte) ([]Section, error) {
	_, content := splitFrontMatter(source)
	doc := c.md.Parser().Parse(text.NewReader(content))

	var (
		sections []Section
		h1       string
		cur      = &Section{}
		body     []string
	)
	flush := func() {
		if len(body) > 0 {
			cur.Index = len(sections)
			cur.Text = strings.Join(body, "\n\n")
			sections = append(sections, *cur)
		}
		body = nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			flush()
			title := plainText(h, content)
			path := title
			if h.Level == 1 {
				h1 = title
			} else if h1 != "" {
				path = h1 + " > " + title
			}
			cur = &Section{HeaderPath: path, Title: title}
			continue
		}
		if s := plainText(n, content); s != "" {
			body = append(body, s)
		}
	}
	flush()

	return sections, nil
}

// firstHeading returns the text of the first H1, or "".
func firstHeading(doc ast.Node, source []byte) (string, error) {
	tree, err := toc.Inspect(doc, source, toc.MinDepth(1), toc.MaxDepth(1), toc.Compact(true))
	if err != nil {
		return "", fmt.Errorf("inspect TOC: %w", err)
	}
	if len(tree.Items) == 0 {
		return "", nil
	}
	return strings.TrimSpace(string(tree.Items[0].Title)), nil
}

// plainText renders a block node as text. Inline markup is dropped, code is
// kept verbatim and raw HTML is skipped.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch node.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindListItem, ast.KindTextBlock:
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.URL(source))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			b.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return tidy(b.String())
}

// tidy trims each line and drops blank ones.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// splitFrontMatter strips a leading "---" YAML block and returns its title.
func splitFrontMatter(source []byte) (string, []byte) {
	const delim = "---"
	if !bytes.HasPrefix(source, []byte(delim+"\n")) && !bytes.HasPrefix(source, []byte(delim+"\r\n")) {
		return "", source
	}
	rest := source[bytes.IndexByte(source, '\n')+1:]
	end := bytes.Index(rest, []byte("\n"+delim))
	if end < 0 {
		return "", source
	}
	header := rest[:end]
	content := rest[end+len(delim)+1:]
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		content = content[i+1:]
	} else {
		content = nil
	}

	var fm struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return "", source
	}
	return strings.TrimSpace(fm.Title), content
}
