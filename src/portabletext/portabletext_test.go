package portabletext

import (
	"html/template"
	"strings"
	"testing"

	"github.com/quillpress/quill/src/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, doc string) []Node {
	t.Helper()
	nodes, err := Decode([]byte(doc))
	require.Nil(t, err)
	return nodes
}

func TestDecode(t *testing.T) {
	t.Run("empty documents", func(t *testing.T) {
		for _, doc := range []string{"", "null", "  ", "[]"} {
			nodes, err := Decode([]byte(doc))
			assert.Nil(t, err, doc)
			assert.Empty(t, nodes, doc)
		}
	})
	t.Run("not an array", func(t *testing.T) {
		_, err := Decode([]byte(`{"_type":"block"}`))
		assert.NotNil(t, err)
	})
	t.Run("block styles", func(t *testing.T) {
		nodes := mustDecode(t, `[
			{"_type":"block","style":"h2","children":[{"_type":"span","text":"Title"}]},
			{"_type":"block","children":[{"_type":"span","text":"Body"}]}
		]`)
		require.Len(t, nodes, 2)
		assert.Equal(t, KindH2, nodes[0].Kind())
		assert.Equal(t, KindNormal, nodes[1].Kind())
	})
	t.Run("links wrap their spans", func(t *testing.T) {
		nodes := mustDecode(t, `[{
			"_type":"block","style":"normal",
			"markDefs":[{"_key":"l1","_type":"link","href":"https://example.com"}],
			"children":[
				{"_type":"span","text":"Go to ","marks":[]},
				{"_type":"span","text":"the ","marks":["l1"]},
				{"_type":"span","text":"site","marks":["l1","strong"]},
				{"_type":"span","text":" now","marks":[]}
			]
		}]`)
		require.Len(t, nodes, 1)
		inline := nodes[0].Children()
		require.Len(t, inline, 3)

		link, ok := inline[1].(*Link)
		require.True(t, ok)
		assert.Equal(t, "https://example.com", link.Href)
		require.Len(t, link.Content, 2)
		assert.Equal(t, "the ", link.Content[0].(*Span).Value)
		assert.Equal(t, []string{"strong"}, link.Content[1].(*Span).Marks)
	})
	t.Run("adjacent spans with the same marks merge", func(t *testing.T) {
		nodes := mustDecode(t, `[{"_type":"block","children":[
			{"_type":"span","text":"a","marks":["em"]},
			{"_type":"span","text":"b","marks":["em"]},
			{"_type":"span","text":"c","marks":[]}
		]}]`)
		inline := nodes[0].Children()
		require.Len(t, inline, 2)
		assert.Equal(t, "ab", inline[0].(*Span).Value)
	})
	t.Run("lists are grouped and nested", func(t *testing.T) {
		nodes := mustDecode(t, `[
			{"_type":"block","children":[{"_type":"span","text":"intro"}]},
			{"_type":"block","listItem":"bullet","level":1,"children":[{"_type":"span","text":"one"}]},
			{"_type":"block","listItem":"bullet","level":2,"children":[{"_type":"span","text":"one.a"}]},
			{"_type":"block","listItem":"bullet","level":1,"children":[{"_type":"span","text":"two"}]},
			{"_type":"block","listItem":"number","level":1,"children":[{"_type":"span","text":"first"}]},
			{"_type":"block","children":[{"_type":"span","text":"outro"}]}
		]`)
		require.Len(t, nodes, 4)
		assert.Equal(t, KindNormal, nodes[0].Kind())

		bullets := nodes[1].(*List)
		assert.Equal(t, ListBullet, bullets.Type)
		require.Len(t, bullets.Items, 2)
		first := bullets.Items[0].(*ListItem)
		require.Len(t, first.Content, 2)
		nested := first.Content[1].(*List)
		assert.Equal(t, 2, nested.Level)
		require.Len(t, nested.Items, 1)

		numbers := nodes[2].(*List)
		assert.Equal(t, ListNumber, numbers.Type)
		assert.Len(t, numbers.Items, 1)

		assert.Equal(t, KindNormal, nodes[3].Kind())
	})
	t.Run("unknown types keep raw json and children", func(t *testing.T) {
		nodes := mustDecode(t, `[{"_type":"callout","tone":"warning","children":[{"_type":"span","text":"careful"}]}]`)
		require.Len(t, nodes, 1)
		u, ok := nodes[0].(*Unknown)
		require.True(t, ok)
		assert.Equal(t, Kind("callout"), u.Kind())
		assert.Contains(t, string(u.Raw), `"tone":"warning"`)
		require.Len(t, u.Children(), 1)
		assert.Equal(t, "careful", u.Children()[0].(*Span).Value)
	})
	t.Run("garbage elements do not fail the document", func(t *testing.T) {
		nodes := mustDecode(t, `[42, "text", {"_type":"block","children":{"not":"an array"}}]`)
		require.Len(t, nodes, 3)
		for _, n := range nodes {
			_, ok := n.(*Unknown)
			assert.True(t, ok)
		}
		assert.Equal(t, Kind("block"), nodes[2].Kind())
	})
	t.Run("a badly typed field keeps the children", func(t *testing.T) {
		nodes := mustDecode(t, `[
			{"_type":"block","level":"2","children":[{"_type":"span","text":"kept text"}]},
			{"_type":"block","children":[{"_type":"span","text":"second"}]}
		]`)
		require.Len(t, nodes, 2)
		u, ok := nodes[0].(*Unknown)
		require.True(t, ok)
		assert.Equal(t, Kind("block"), u.Kind())
		require.Len(t, u.Children(), 1)
		assert.Equal(t, "kept text", u.Children()[0].(*Span).Value)
	})
	t.Run("leaf types", func(t *testing.T) {
		nodes := mustDecode(t, `[
			{"_type":"image","asset":{"_ref":"image-a-1x1-png"},"alt":"A"},
			{"_type":"code","language":"go","code":"x := 1"},
			{"_type":"markdown","markdown":"# hi"}
		]`)
		require.Len(t, nodes, 3)
		assert.Equal(t, "image-a-1x1-png", nodes[0].(*Image).Asset.Ref)
		assert.Equal(t, "go", nodes[1].(*Code).Language)
		assert.Equal(t, "# hi", nodes[2].(*Markdown).Source)
	})
}

func TestNewSerializers(t *testing.T) {
	assert.Panics(t, func() {
		NewSerializers(map[Kind]Serializer{KindSpan: DefaultSerializer}, nil)
	})
	assert.Panics(t, func() {
		Render([]Node{&Span{Value: "x"}}, Serializers{})
	})
	assert.NotPanics(t, func() {
		NewSerializers(nil, DefaultSerializer)
	})
}

func TestRender(t *testing.T) {
	t.Run("total over unknown kinds", func(t *testing.T) {
		doc := []Node{
			&Unknown{Type: "mystery", Content: []Node{&Span{Value: "inside <mystery>"}}},
			&Block{Style: "h9", Content: []Node{&Span{Value: "odd heading"}}},
			&Unknown{Type: ""},
		}
		out := Render(doc, HTMLSerializers(HTMLOptions{}))
		require.Len(t, out, 3)
		assert.Equal(t, template.HTML("inside &lt;mystery&gt;"), out[0])
		assert.Equal(t, template.HTML("odd heading"), out[1])
		assert.Equal(t, template.HTML(""), out[2])
	})
	t.Run("sibling order is preserved", func(t *testing.T) {
		var doc []Node
		for _, text := range []string{"one", "two", "three", "four"} {
			doc = append(doc, &Block{Content: []Node{&Span{Value: text}}})
		}
		out := Render(doc, HTMLSerializers(HTMLOptions{}))
		assert.Equal(t, []template.HTML{"<p>one</p>", "<p>two</p>", "<p>three</p>", "<p>four</p>"}, out)
	})
	t.Run("children are rendered before their parent", func(t *testing.T) {
		var visited []Kind
		record := func(n Node, children []template.HTML) template.HTML {
			visited = append(visited, n.Kind())
			return "[" + Join(children) + "]"
		}
		s := NewSerializers(nil, record)
		doc := []Node{&Block{Content: []Node{&Link{Content: []Node{&Span{Value: "x"}}}}}}
		out := Render(doc, s)
		assert.Equal(t, []Kind{KindSpan, KindLink, KindNormal}, visited)
		assert.Equal(t, []template.HTML{"[[[]]]"}, out)
	})
	t.Run("with overrides one kind", func(t *testing.T) {
		s := HTMLSerializers(HTMLOptions{}).With("callout", func(n Node, children []template.HTML) template.HTML {
			return `<aside>` + Join(children) + `</aside>`
		})
		doc := mustDecode(t, `[{"_type":"callout","children":[{"_type":"span","text":"hey"}]}]`)
		assert.Equal(t, template.HTML("<aside>hey</aside>"), RenderHTML(doc, s))
	})
}

func TestHTMLSerializers(t *testing.T) {
	s := HTMLSerializers(HTMLOptions{
		Images: assets.SanityImages{ProjectID: "p", Dataset: "d"},
	})

	t.Run("headings and decorators", func(t *testing.T) {
		doc := mustDecode(t, `[
			{"_type":"block","style":"h1","children":[{"_type":"span","text":"Hello"}]},
			{"_type":"block","children":[
				{"_type":"span","text":"bold","marks":["strong"]},
				{"_type":"span","text":" & ","marks":[]},
				{"_type":"span","text":"loud","marks":["em","underline","mystery"]}
			]}
		]`)
		assert.Equal(t, template.HTML(`<h1>Hello</h1><p><strong>bold</strong> &amp; <u><em>loud</em></u></p>`), RenderHTML(doc, s))
	})
	t.Run("malformed blocks still show their text", func(t *testing.T) {
		doc := mustDecode(t, `[
			{"_type":"block","level":"2","children":[{"_type":"span","text":"kept text"}]},
			{"_type":"block","children":[{"_type":"span","text":"second"}]}
		]`)
		html := string(RenderHTML(doc, s))
		assert.Contains(t, html, "kept text")
		assert.True(t, strings.HasSuffix(html, "<p>second</p>"))
	})
	t.Run("lists", func(t *testing.T) {
		doc := mustDecode(t, `[
			{"_type":"block","listItem":"number","children":[{"_type":"span","text":"a"}]},
			{"_type":"block","listItem":"number","children":[{"_type":"span","text":"b"}]}
		]`)
		assert.Equal(t, template.HTML(`<ol><li>a</li><li>b</li></ol>`), RenderHTML(doc, s))
	})
	t.Run("links", func(t *testing.T) {
		doc := mustDecode(t, `[{"_type":"block","markDefs":[
			{"_key":"ext","_type":"link","href":"https://example.com/?a=1&b=2"},
			{"_key":"int","_type":"link","href":"/post/other"},
			{"_key":"bad","_type":"link","href":"javascript:alert(1)"}
		],"children":[
			{"_type":"span","text":"external","marks":["ext"]},
			{"_type":"span","text":" ","marks":[]},
			{"_type":"span","text":"internal","marks":["int"]},
			{"_type":"span","text":" ","marks":[]},
			{"_type":"span","text":"evil","marks":["bad"]}
		]}]`)
		out := string(RenderHTML(doc, s))
		assert.Contains(t, out, `<a href="https://example.com/?a=1&amp;b=2" rel="noopener" target="_blank">external</a>`)
		assert.Contains(t, out, `<a href="/post/other">internal</a>`)
		assert.Contains(t, out, ` evil</p>`)
		assert.NotContains(t, out, "javascript")
	})
	t.Run("images", func(t *testing.T) {
		doc := mustDecode(t, `[
			{"_type":"image","asset":{"_ref":"image-abc-10x20-png"},"alt":"a \"cat\""},
			{"_type":"image","asset":{"_ref":"not-an-image"}}
		]`)
		out := Render(doc, s)
		require.Len(t, out, 2)
		assert.Equal(t, template.HTML(`<figure><img src="https://cdn.sanity.io/images/p/d/abc-10x20.png" alt="a &#34;cat&#34;" loading="lazy"></figure>`), out[0])
		assert.Equal(t, template.HTML(""), out[1])

		noImages := HTMLSerializers(HTMLOptions{})
		assert.Equal(t, template.HTML(""), Render(doc[:1], noImages)[0])
	})
	t.Run("code", func(t *testing.T) {
		doc := mustDecode(t, `[{"_type":"code","language":"go","filename":"main.go","code":"package main"}]`)
		out := string(RenderHTML(doc, s))
		assert.True(t, strings.HasPrefix(out, `<div class="code-filename">main.go</div><pre class="quill-code">`))
		assert.Contains(t, out, "package")
	})
	t.Run("markdown", func(t *testing.T) {
		doc := mustDecode(t, `[{"_type":"markdown","markdown":"Some **markdown** here"}]`)
		out := string(RenderHTML(doc, s))
		assert.Contains(t, out, "<strong>markdown</strong>")
	})
}

func TestPlainText(t *testing.T) {
	doc := mustDecode(t, `[
		{"_type":"block","style":"h1","children":[{"_type":"span","text":"Title"}]},
		{"_type":"block","markDefs":[{"_key":"l","_type":"link","href":"/x"}],"children":[
			{"_type":"span","text":"Linked","marks":["l"]},
			{"_type":"span","text":" text.\nMore.","marks":[]}
		]},
		{"_type":"code","code":"secret()"},
		{"_type":"block","listItem":"bullet","children":[{"_type":"span","text":"one"}]},
		{"_type":"block","listItem":"bullet","children":[{"_type":"span","text":"two"}]},
		{"_type":"markdown","markdown":"Some *md*"}
	]`)
	assert.Equal(t, "Title Linked text. More. one two Some md", PlainText(doc))
}
