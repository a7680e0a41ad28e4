package templates

import (
	"strings"

	"github.com/quillpress/quill/src/assets"
	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/models"
	"github.com/quillpress/quill/src/parsing"
)

const (
	MainImageWidth = 1200
	AvatarWidth    = 80
)

func AuthorToTemplate(a *models.Author, images assets.Resolver) Author {
	if a == nil {
		return Author{}
	}
	return Author{
		Name:      a.Name,
		AvatarUrl: assets.URLFor(images, a.Image, assets.ImageOptions{Width: AvatarWidth, Height: AvatarWidth}),
	}
}

func PostToListItem(p *models.Post, images assets.Resolver) PostListItem {
	return PostListItem{
		Title:        p.Title,
		Description:  p.Description,
		Url:          hmnurl.BuildPost(p.Slug.Current),
		MainImageUrl: assets.URLFor(images, p.MainImage, assets.ImageOptions{Width: MainImageWidth / 2}),
		Author:       AuthorToTemplate(p.Author, images),
		CreatedAt:    p.CreatedAt,
	}
}

// PostToTemplate leaves the body empty. Rendering it is up to the caller.
func PostToTemplate(p *models.Post, images assets.Resolver) Post {
	return Post{
		ID:           p.ID,
		Slug:         p.Slug.Current,
		Title:        p.Title,
		Description:  p.Description,
		Url:          hmnurl.BuildPost(p.Slug.Current),
		MainImageUrl: assets.URLFor(images, p.MainImage, assets.ImageOptions{Width: MainImageWidth}),
		Author:       AuthorToTemplate(p.Author, images),
		CreatedAt:    p.CreatedAt,
	}
}

func CommentToTemplate(c models.Comment) Comment {
	return Comment{
		ID:        c.ID,
		Name:      c.Name,
		Content:   parsing.LinkifyText(c.Comment),
		CreatedAt: c.CreatedAt,
	}
}

func CommentsToTemplate(cs []models.Comment) []Comment {
	res := make([]Comment, len(cs))
	for i, c := range cs {
		res[i] = CommentToTemplate(c)
	}
	return res
}

// CommentFormToTemplate describes form as the reader should see it. errs
// comes from the reader's last submit, if it was invalid.
func CommentFormToTemplate(p *models.Post, form *comments.Form, errs comments.ValidationErrors) CommentForm {
	res := CommentForm{
		PostID:      p.ID,
		Action:      hmnurl.BuildPostComment(p.Slug.Current),
		ApiUrl:      hmnurl.BuildAPICreateComment(),
		State:       StateName(comments.NotSubmitted),
		FieldErrors: make(map[string]bool),
	}
	if form == nil {
		return res
	}

	state := form.State()
	draft := form.Draft()
	res.State = StateName(state)
	res.Submitted = state == comments.Submitted
	res.Failed = state == comments.Failed
	res.Name = draft.Name
	res.Email = draft.Email
	res.Comment = draft.Comment
	for _, err := range errs {
		res.Errors = append(res.Errors, err.Error())
		res.FieldErrors[string(err.Field)] = true
	}
	return res
}

// StateName is the form of a state used in data attributes.
func StateName(s comments.State) string {
	return strings.ReplaceAll(s.String(), " ", "-")
}
