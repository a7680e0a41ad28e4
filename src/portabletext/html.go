package portabletext

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"github.com/quillpress/quill/src/assets"
	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/parsing"
)

type HTMLOptions struct {
	// Images are dropped when this is nil.
	Images     assets.Resolver
	ImageWidth int
}

func HTMLSerializers(opts HTMLOptions) Serializers {
	types := map[Kind]Serializer{
		KindNormal:     wrap("p"),
		KindBlockquote: wrap("blockquote"),
		KindList:       serializeList,
		KindListItem:   wrap("li"),
		KindLink:       serializeLink,
		KindSpan:       serializeSpan,
		KindImage:      imageSerializer(opts),
		KindCode:       serializeCode,
		KindMarkdown:   serializeMarkdown,
	}
	for _, heading := range []Kind{KindH1, KindH2, KindH3, KindH4, KindH5, KindH6} {
		types[heading] = wrap(string(heading))
	}

	return NewSerializers(types, DefaultSerializer)
}

func wrap(tag string) Serializer {
	return func(n Node, children []template.HTML) template.HTML {
		return template.HTML(fmt.Sprintf("<%s>%s</%s>", tag, Join(children), tag))
	}
}

func serializeList(n Node, children []template.HTML) template.HTML {
	tag := "ul"
	if list, ok := n.(*List); ok && list.Type == ListNumber {
		tag = "ol"
	}
	return wrap(tag)(n, children)
}

var decoratorTags = []struct {
	Mark string
	Tag  string
}{
	{"strong", "strong"},
	{"em", "em"},
	{"underline", "u"},
	{"strike-through", "s"},
	{"code", "code"},
}

func serializeSpan(n Node, children []template.HTML) template.HTML {
	span, ok := n.(*Span)
	if !ok {
		return DefaultSerializer(n, children)
	}

	text := strings.ReplaceAll(html.EscapeString(span.Value), "\n", "<br>")
	for _, d := range decoratorTags {
		if span.HasMark(d.Mark) {
			text = fmt.Sprintf("<%s>%s</%s>", d.Tag, text, d.Tag)
		}
	}
	return template.HTML(text)
}

func serializeLink(n Node, children []template.HTML) template.HTML {
	link, ok := n.(*Link)
	if !ok {
		return Join(children)
	}

	u, err := url.Parse(strings.TrimSpace(link.Href))
	if err != nil || link.Href == "" {
		return Join(children)
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
	default:
		// javascript: and friends
		return Join(children)
	}

	attrs := ""
	if u.Host != "" {
		attrs = ` rel="noopener" target="_blank"`
	}
	return template.HTML(fmt.Sprintf(`<a href="%s"%s>%s</a>`, html.EscapeString(u.String()), attrs, Join(children)))
}

func imageSerializer(opts HTMLOptions) Serializer {
	return func(n Node, children []template.HTML) template.HTML {
		img, ok := n.(*Image)
		if !ok || opts.Images == nil || img.Asset.Ref == "" {
			return ""
		}

		src, err := opts.Images.ImageURL(img.Asset, assets.ImageOptions{Width: opts.ImageWidth})
		if err != nil {
			logging.Warn().Err(err).Str("ref", img.Asset.Ref).Msg("dropping image with bad asset reference")
			return ""
		}

		var b strings.Builder
		b.WriteString(`<figure><img src="`)
		b.WriteString(html.EscapeString(src))
		b.WriteString(`" alt="`)
		b.WriteString(html.EscapeString(img.Alt))
		b.WriteString(`" loading="lazy">`)
		if img.Caption != "" {
			b.WriteString("<figcaption>")
			b.WriteString(html.EscapeString(img.Caption))
			b.WriteString("</figcaption>")
		}
		b.WriteString("</figure>")
		return template.HTML(b.String())
	}
}

func serializeCode(n Node, children []template.HTML) template.HTML {
	code, ok := n.(*Code)
	if !ok {
		return DefaultSerializer(n, children)
	}

	highlighted, err := parsing.HighlightCode(code.Source, code.Language)
	if err != nil {
		logging.Warn().Err(err).Str("language", code.Language).Msg("failed to highlight code block")
		highlighted = template.HTML(`<pre class="quill-code">` + html.EscapeString(code.Source) + `</pre>`)
	}

	if code.Filename != "" {
		return template.HTML(`<div class="code-filename">`+html.EscapeString(code.Filename)+`</div>`) + highlighted
	}
	return highlighted
}

func serializeMarkdown(n Node, children []template.HTML) template.HTML {
	md, ok := n.(*Markdown)
	if !ok {
		return DefaultSerializer(n, children)
	}
	return template.HTML(parsing.ParseMarkdown(md.Source, parsing.PostMarkdown))
}
