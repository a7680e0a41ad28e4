package portabletext

import (
	"encoding/json"

	"github.com/quillpress/quill/src/models"
)

// Kind selects the serializer for a node. Block kinds are their style
// (h1, normal, blockquote...). Unknown nodes use their original _type.
type Kind string

const (
	KindH1         Kind = "h1"
	KindH2         Kind = "h2"
	KindH3         Kind = "h3"
	KindH4         Kind = "h4"
	KindH5         Kind = "h5"
	KindH6         Kind = "h6"
	KindNormal     Kind = "normal"
	KindBlockquote Kind = "blockquote"
	KindList       Kind = "list"
	KindListItem   Kind = "listItem"
	KindLink       Kind = "link"
	KindSpan       Kind = "span"
	KindImage      Kind = "image"
	KindCode       Kind = "code"
	KindMarkdown   Kind = "markdown"
)

type Node interface {
	Kind() Kind
	Children() []Node
}

// Leaf nodes that carry their own text implement TextNode. The default
// serializer falls back to this text so content is never lost.
type TextNode interface {
	Node
	Text() string
}

type Block struct {
	Style   string
	Content []Node
}

func (b *Block) Kind() Kind {
	if b.Style == "" {
		return KindNormal
	}
	return Kind(b.Style)
}

func (b *Block) Children() []Node { return b.Content }

type ListType string

const (
	ListBullet ListType = "bullet"
	ListNumber ListType = "number"
)

type List struct {
	Type  ListType
	Level int
	Items []Node
}

func (l *List) Kind() Kind       { return KindList }
func (l *List) Children() []Node { return l.Items }

// A ListItem's children are its inline content, optionally followed by
// nested lists for deeper levels.
type ListItem struct {
	Style   string
	Level   int
	Content []Node
}

func (li *ListItem) Kind() Kind       { return KindListItem }
func (li *ListItem) Children() []Node { return li.Content }

type Span struct {
	Value string
	// Decorators only. Annotations become wrapping nodes.
	Marks []string
}

func (s *Span) Kind() Kind       { return KindSpan }
func (s *Span) Children() []Node { return nil }
func (s *Span) Text() string     { return s.Value }

func (s *Span) HasMark(mark string) bool {
	for _, m := range s.Marks {
		if m == mark {
			return true
		}
	}
	return false
}

type Link struct {
	Href    string
	Content []Node
}

func (l *Link) Kind() Kind       { return KindLink }
func (l *Link) Children() []Node { return l.Content }

type Image struct {
	Asset   models.AssetRef
	Alt     string
	Caption string
}

func (img *Image) Kind() Kind       { return KindImage }
func (img *Image) Children() []Node { return nil }

type Code struct {
	Language string
	Filename string
	Source   string
}

func (c *Code) Kind() Kind       { return KindCode }
func (c *Code) Children() []Node { return nil }
func (c *Code) Text() string     { return c.Source }

type Markdown struct {
	Source string
}

func (md *Markdown) Kind() Kind       { return KindMarkdown }
func (md *Markdown) Children() []Node { return nil }
func (md *Markdown) Text() string     { return md.Source }

// Unknown holds any node type the decoder does not understand. Raw is the
// node's original JSON, so a custom serializer registered for Type can
// still do something useful with it.
type Unknown struct {
	Type    string
	Raw     json.RawMessage
	Content []Node
}

func (u *Unknown) Kind() Kind       { return Kind(u.Type) }
func (u *Unknown) Children() []Node { return u.Content }
