package parsing

import (
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
)

// excerptRenderer writes the readable text of a markdown document on one
// line, for meta descriptions and post cards.
type excerptRenderer struct{}

var _ renderer.Renderer = excerptRenderer{}

var markdownEscape = regexp.MustCompile("\\\\([\\\\\\x60!\"#$%&'()*+,-./:;<=>?@\\[\\]^_{|}~])")

func (r excerptRenderer) Render(w io.Writer, source []byte, doc ast.Node) error {
	var b strings.Builder
	space := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindHeading, ast.KindListItem, ast.KindBlockquote:
			space()
		case ast.KindText:
			if !entering {
				break
			}
			t := n.(*ast.Text)
			b.Write(markdownEscape.ReplaceAll(t.Segment.Value(source), []byte("$1")))
			if t.SoftLineBreak() || t.HardLineBreak() {
				space()
			}
		case ast.KindImage:
			// Alt text lives in the image's children, which Walk visits next.
			if entering {
				space()
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, strings.Join(strings.Fields(b.String()), " "))
	return err
}

func (r excerptRenderer) AddOptions(...renderer.Option) {}
