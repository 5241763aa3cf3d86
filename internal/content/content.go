// Package content turns post bodies into HTML for the page.
package content

import (
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

type Renderer interface {
	Render(body string) template.HTML
}

// Plain escapes the body and keeps it as text.
type Plain struct{}

func (Plain) Render(body string) template.HTML {
	return template.HTML(template.HTMLEscapeString(body))
}

// Markdown renders the body as markdown and strips anything outside the UGC policy.
type Markdown struct {
	policy *bluemonday.Policy
}

func NewMarkdown() *Markdown {
	return &Markdown{policy: bluemonday.UGCPolicy()}
}

func (m *Markdown) Render(body string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(body))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(m.policy.SanitizeBytes(markdown.Render(doc, renderer)))
}

// New picks a renderer by flag.
func New(markdownEnabled bool) Renderer {
	if markdownEnabled {
		return NewMarkdown()
	}
	return Plain{}
}
