package fbmarkdown

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Renderer turns the markdown body of a step into HTML for previews.
// Raw HTML in the source is dropped.
type Renderer struct {
	md goldmark.Markdown
}

func New() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM, emoji.Emoji),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(offsiteLinks{}, 100)),
		),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)}
}

// ToHTML falls back to the escaped source when conversion fails.
func (r *Renderer) ToHTML(markdown string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		log.Error().Err(err).Int("bytes", len(markdown)).Msg("step content conversion")
		return "<pre>" + template.HTMLEscapeString(markdown) + "</pre>"
	}
	return buf.String()
}

// offsiteLinks opens absolute links in a new tab. Relative links point to
// other steps of the funnel and stay in place.
type offsiteLinks struct{}

func (offsiteLinks) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		link, ok := n.(*ast.Link)
		if !entering || !ok || !isOffsite(link.Destination) {
			return ast.WalkContinue, nil
		}
		link.SetAttributeString("target", []byte("_blank"))
		link.SetAttributeString("rel", []byte("noopener noreferrer"))
		return ast.WalkContinue, nil
	})
}

func isOffsite(dest []byte) bool {
	d := strings.ToLower(string(dest))
	return strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") || strings.HasPrefix(d, "//")
}
