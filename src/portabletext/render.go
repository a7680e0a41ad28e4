package portabletext

import (
	"html"
	"html/template"
	"strings"
)

// A Serializer renders one node. children holds the node's children,
// already rendered, in order.
type Serializer func(n Node, children []template.HTML) template.HTML

type Serializers struct {
	types map[Kind]Serializer
	def   Serializer
}

// NewSerializers panics if def is nil. Every render needs somewhere to send
// node kinds nobody registered.
func NewSerializers(types map[Kind]Serializer, def Serializer) Serializers {
	if def == nil {
		panic("portabletext: a default serializer is required")
	}

	copied := make(map[Kind]Serializer, len(types))
	for kind, s := range types {
		if s != nil {
			copied[kind] = s
		}
	}
	return Serializers{
		types: copied,
		def:   def,
	}
}

// With returns a copy of s with the serializer for kind replaced.
func (s Serializers) With(kind Kind, ser Serializer) Serializers {
	types := make(map[Kind]Serializer, len(s.types)+1)
	for k, v := range s.types {
		types[k] = v
	}
	types[kind] = ser
	return NewSerializers(types, s.def)
}

func (s Serializers) lookup(kind Kind) Serializer {
	if ser, ok := s.types[kind]; ok {
		return ser
	}
	return s.def
}

// Render renders each top-level node of doc, depth first. The result has one
// entry per top-level node, in document order.
func Render(doc []Node, s Serializers) []template.HTML {
	if s.def == nil {
		panic("portabletext: serializers must be created with NewSerializers")
	}

	res := make([]template.HTML, 0, len(doc))
	for _, n := range doc {
		if n == nil {
			continue
		}
		res = append(res, renderNode(n, s))
	}
	return res
}

func renderNode(n Node, s Serializers) template.HTML {
	children := n.Children()
	rendered := make([]template.HTML, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		rendered = append(rendered, renderNode(child, s))
	}
	return s.lookup(n.Kind())(n, rendered)
}

// RenderHTML renders doc and joins the result.
func RenderHTML(doc []Node, s Serializers) template.HTML {
	return Join(Render(doc, s))
}

func Join(parts []template.HTML) template.HTML {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(string(p))
	}
	return template.HTML(b.String())
}

// DefaultSerializer keeps a node's content and drops its formatting: the
// escaped text of leaf nodes, followed by the rendered children.
func DefaultSerializer(n Node, children []template.HTML) template.HTML {
	var text template.HTML
	if t, ok := n.(TextNode); ok {
		text = template.HTML(html.EscapeString(t.Text()))
	}
	return text + Join(children)
}
