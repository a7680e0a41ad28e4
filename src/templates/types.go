package templates

import (
	"html/template"
	"time"
)

type BaseData struct {
	Title          string
	Description    string
	CanonicalLink  string
	OpenGraphItems []OpenGraphItem
	BodyClasses    []string
	Notices        []Notice

	Site   Site
	Header Header
}

func (bd *BaseData) AddImmediateNotice(class, content string) {
	bd.Notices = append(bd.Notices, Notice{
		Class:   class,
		Content: template.HTML(template.HTMLEscapeString(content)),
	})
}

type Site struct {
	Title       string
	AccentColor string
}

type Header struct {
	HomepageUrl string
}

// Classes are "success", "warn" and "failure".
type Notice struct {
	Content template.HTML
	Class   string
}

type OpenGraphItem struct {
	Property string
	Name     string
	Value    string
}

type Author struct {
	Name      string
	AvatarUrl string
}

type PostListItem struct {
	Title        string
	Description  string
	Url          string
	MainImageUrl string
	Author       Author
	CreatedAt    time.Time
}

type Post struct {
	ID           string
	Slug         string
	Title        string
	Description  string
	Url          string
	MainImageUrl string
	Author       Author
	CreatedAt    time.Time
	Body         template.HTML
}

type Comment struct {
	ID        string
	Name      string
	Content   template.HTML
	CreatedAt time.Time
}

type CommentForm struct {
	PostID string
	// Where the form posts without JavaScript.
	Action string
	// Where comment.js posts JSON.
	ApiUrl string

	State     string
	Submitted bool
	Failed    bool

	Name    string
	Email   string
	Comment string

	// One message per invalid field, in form order.
	Errors      []string
	FieldErrors map[string]bool
}

type IndexPage struct {
	BaseData
	Posts []PostListItem
}

type PostPage struct {
	BaseData
	Post        Post
	Comments    []Comment
	CommentForm CommentForm
}

type ErrorPage struct {
	BaseData
	Status   int
	Messages []string
}
