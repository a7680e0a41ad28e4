package portabletext

import (
	"strings"

	"github.com/quillpress/quill/src/parsing"
)

// PlainText flattens doc into a single line of text, for meta descriptions
// and listing excerpts. Code and images are skipped.
func PlainText(doc []Node) string {
	var b strings.Builder
	for _, n := range doc {
		writePlainText(&b, n)
		b.WriteString(" ")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func writePlainText(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		return
	case *Span:
		b.WriteString(n.Value)
		return
	case *Code, *Image:
		return
	case *Markdown:
		b.WriteString(parsing.ParseMarkdown(n.Source, parsing.PlaintextMarkdown))
		return
	case *ListItem:
		defer b.WriteString(" ")
	}

	for _, child := range n.Children() {
		writePlainText(b, child)
	}
}
