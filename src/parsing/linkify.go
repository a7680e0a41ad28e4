package parsing

import (
	"html"
	"html/template"
	"strings"

	"mvdan.cc/xurls/v2"
)

var urlRegex = xurls.Strict()

// LinkifyText escapes plain reader-supplied text and turns any URLs in it
// into links. Line breaks are kept.
func LinkifyText(text string) template.HTML {
	var b strings.Builder

	last := 0
	for _, loc := range urlRegex.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))

		url := text[loc[0]:loc[1]]
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			b.WriteString(`<a href="`)
			b.WriteString(html.EscapeString(url))
			b.WriteString(`" rel="nofollow noopener" target="_blank">`)
			b.WriteString(html.EscapeString(url))
			b.WriteString(`</a>`)
		} else {
			// mailto:, ftp: and friends stay as text
			b.WriteString(html.EscapeString(url))
		}
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))

	return template.HTML(strings.ReplaceAll(b.String(), "\n", "<br>\n"))
}
