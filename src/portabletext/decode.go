package portabletext

import (
	"bytes"
	"encoding/json"

	"github.com/quillpress/quill/src/models"
	"github.com/quillpress/quill/src/oops"
)

type rawHead struct {
	Type string `json:"_type"`
}

type rawNode struct {
	Type string `json:"_type"`

	// block
	Style    string            `json:"style"`
	ListItem string            `json:"listItem"`
	Level    int               `json:"level"`
	MarkDefs []json.RawMessage `json:"markDefs"`
	Children []json.RawMessage `json:"children"`

	// span
	Text  string   `json:"text"`
	Marks []string `json:"marks"`

	// image
	Asset   *models.AssetRef `json:"asset"`
	Alt     string           `json:"alt"`
	Caption string           `json:"caption"`

	// code
	Language string `json:"language"`
	Filename string `json:"filename"`
	Code     string `json:"code"`

	// markdown
	Markdown string `json:"markdown"`
}

type markDef struct {
	Key  string `json:"_key"`
	Type string `json:"_type"`
	Href string `json:"href"`

	raw json.RawMessage
}

// Decode parses a Portable Text document. Only a document that is not a JSON
// array at all is an error; anything unexpected inside it decodes to Unknown
// nodes so rendering can still proceed.
func Decode(data []byte) ([]Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, oops.New(err, "portable text document is not an array")
	}

	var d listDecoder
	for _, raw := range elems {
		rn, head, ok := parseNode(raw)
		if ok && head.Type == "block" && rn.ListItem != "" {
			d.addItem(&ListItem{
				Style:   rn.Style,
				Level:   max(rn.Level, 1),
				Content: decodeInline(rn),
			}, ListType(rn.ListItem))
			continue
		}

		d.closeLists()
		d.out = append(d.out, decodeNode(raw))
	}

	return d.out, nil
}

// Portable Text stores lists flat: each item is a block with a listItem type
// and a level. listDecoder rebuilds the nesting.
type listDecoder struct {
	out   []Node
	stack []*List
}

func (d *listDecoder) closeLists() {
	d.stack = nil
}

func (d *listDecoder) addItem(item *ListItem, typ ListType) {
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if top.Level > item.Level || (top.Level == item.Level && top.Type != typ) {
			d.stack = d.stack[:len(d.stack)-1]
			continue
		}
		break
	}

	if len(d.stack) > 0 {
		if top := d.stack[len(d.stack)-1]; top.Level == item.Level {
			top.Items = append(top.Items, item)
			return
		}
	}

	list := &List{
		Type:  typ,
		Level: item.Level,
		Items: []Node{item},
	}
	if len(d.stack) == 0 {
		d.out = append(d.out, list)
	} else {
		parent := d.stack[len(d.stack)-1]
		last := parent.Items[len(parent.Items)-1].(*ListItem)
		last.Content = append(last.Content, list)
	}
	d.stack = append(d.stack, list)
}

// parseNode reports ok only if every field had the expected JSON type. Even
// when it doesn't, encoding/json has still filled in the fields that did,
// so rn.Children is usable either way.
func parseNode(raw json.RawMessage) (rawNode, rawHead, bool) {
	var head rawHead
	var rn rawNode
	headErr := json.Unmarshal(raw, &head)
	err := json.Unmarshal(raw, &rn)
	return rn, head, headErr == nil && err == nil
}

func decodeNode(raw json.RawMessage) Node {
	rn, head, ok := parseNode(raw)
	if !ok {
		// A malformed node still shows its text through the default serializer.
		return &Unknown{Type: head.Type, Raw: raw, Content: decodeChildren(rn.Children)}
	}

	switch rn.Type {
	case "block":
		return &Block{
			Style:   rn.Style,
			Content: decodeInline(rn),
		}
	case "span":
		return &Span{
			Value: rn.Text,
			Marks: rn.Marks,
		}
	case "image":
		img := &Image{
			Alt:     rn.Alt,
			Caption: rn.Caption,
		}
		if rn.Asset != nil {
			img.Asset = *rn.Asset
		}
		return img
	case "code":
		return &Code{
			Language: rn.Language,
			Filename: rn.Filename,
			Source:   rn.Code,
		}
	case "markdown":
		return &Markdown{Source: rn.Markdown}
	default:
		return &Unknown{
			Type:    rn.Type,
			Raw:     raw,
			Content: decodeChildren(rn.Children),
		}
	}
}

func decodeChildren(children []json.RawMessage) []Node {
	var nodes []Node
	for _, child := range children {
		nodes = append(nodes, decodeNode(child))
	}
	return nodes
}

var decorators = map[string]bool{
	"strong":         true,
	"em":             true,
	"code":           true,
	"underline":      true,
	"strike-through": true,
}

// decodeInline turns a block's children into inline nodes. Spans that share
// an annotation (a link, usually) are gathered under one wrapping node.
func decodeInline(rn rawNode) []Node {
	defs := map[string]markDef{}
	for _, raw := range rn.MarkDefs {
		var def markDef
		if err := json.Unmarshal(raw, &def); err != nil || def.Key == "" {
			continue
		}
		def.raw = raw
		defs[def.Key] = def
	}

	var out []Node
	var groupKey string
	var group *[]Node

	for _, raw := range rn.Children {
		child := decodeNode(raw)

		annotation := ""
		if span, ok := child.(*Span); ok {
			var marks []string
			for _, mark := range span.Marks {
				if _, isDef := defs[mark]; isDef && !decorators[mark] {
					if annotation == "" {
						annotation = mark
					}
					continue
				}
				marks = append(marks, mark)
			}
			span.Marks = marks
		}

		if annotation != groupKey {
			groupKey = annotation
			group = nil
			if annotation != "" {
				def := defs[annotation]
				if def.Type == "link" {
					link := &Link{Href: def.Href}
					out = append(out, link)
					group = &link.Content
				} else {
					u := &Unknown{Type: def.Type, Raw: def.raw}
					out = append(out, u)
					group = &u.Content
				}
			}
		}

		if group != nil {
			*group = appendInline(*group, child)
		} else {
			out = appendInline(out, child)
		}
	}

	return out
}

// appendInline merges a span into the previous one when their decorators
// match.
func appendInline(nodes []Node, n Node) []Node {
	span, ok := n.(*Span)
	if !ok || len(nodes) == 0 {
		return append(nodes, n)
	}
	prev, ok := nodes[len(nodes)-1].(*Span)
	if !ok || !sameMarks(prev.Marks, span.Marks) {
		return append(nodes, n)
	}
	prev.Value += span.Value
	return nodes
}

func sameMarks(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, m := range a {
		found := false
		for _, o := range b {
			if m == o {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
