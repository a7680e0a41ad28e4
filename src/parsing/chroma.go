package parsing

import (
	"html/template"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

var QuillChromaOptions = []html.Option{
	html.WithClasses(true),
	html.WithPreWrapper(nopPreWrapper{}),
}

type nopPreWrapper struct{}

var _ html.PreWrapper = nopPreWrapper{}

func (w nopPreWrapper) Start(code bool, styleAttr string) string {
	return ""
}

func (w nopPreWrapper) End(code bool) string {
	return ""
}

var codeFormatter = html.New(QuillChromaOptions...)

// HighlightCode renders a standalone code block the same way fenced code in
// markdown is rendered. Unknown languages fall back to plain text.
func HighlightCode(code, language string) (template.HTML, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(`<pre class="quill-code">`)
	if err := codeFormatter.Format(&b, styles.Fallback, iterator); err != nil {
		return "", err
	}
	b.WriteString(`</pre>`)

	return template.HTML(b.String()), nil
}
