package templates

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseData() BaseData {
	return BaseData{
		Title:  "Test",
		Site:   Site{Title: "Quill", AccentColor: "eab308"},
		Header: Header{HomepageUrl: "/"},
	}
}

func render(t *testing.T, name string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	require.Nil(t, GetTemplate(name).Execute(&buf, data))
	return buf.String()
}

func TestTemplatesParse(t *testing.T) {
	templates, errs := getTemplatesFromFS(embeddedTemplateFs)
	assert.Empty(t, errs)
	for _, name := range []string{"index.html", "post.html", "404.html", "error.html"} {
		assert.Contains(t, templates, name)
	}
}

func TestIndexTemplate(t *testing.T) {
	out := render(t, "index.html", IndexPage{
		BaseData: baseData(),
		Posts: []PostListItem{{
			Title:       "Hello <world>",
			Description: "First",
			Url:         "/post/hello",
			Author:      Author{Name: "Ada"},
		}},
	})
	assert.Contains(t, out, "Hello &lt;world&gt;")
	assert.Contains(t, out, `href="/post/hello"`)
	assert.Contains(t, out, "--accent: #")
	assert.Contains(t, out, "<title>Test | Quill</title>")
}

func TestPostTemplate(t *testing.T) {
	post := &models.Post{ID: "p1", Slug: models.Slug{Current: "hello"}, Title: "Hello"}
	page := PostPage{
		BaseData: baseData(),
		Post: Post{
			Title:     "Hello",
			CreatedAt: time.Date(2021, 3, 25, 15, 4, 5, 0, time.UTC),
			Body:      template.HTML("<p>body</p>"),
			Author:    Author{Name: "Ada"},
		},
		Comments: []Comment{{ID: "c1", Name: "Bob", Content: template.HTML("nice")}},
	}

	t.Run("fresh form", func(t *testing.T) {
		page.CommentForm = CommentFormToTemplate(post, nil, nil)
		out := render(t, "post.html", page)
		assert.Contains(t, out, "<p>body</p>")
		assert.Contains(t, out, "3/25/2021, 3:04:05 PM")
		assert.Contains(t, out, `data-state="not-submitted"`)
		assert.Contains(t, out, `name="_id" value="p1"`)
		assert.Contains(t, out, `id="comment-c1"`)
	})
	t.Run("invalid form keeps values", func(t *testing.T) {
		form := comments.NewForm("p1", nil)
		err := form.Submit(context.Background(), comments.Draft{Email: "bob@example.com", Comment: "hi"})
		errs, ok := err.(comments.ValidationErrors)
		require.True(t, ok)

		page.CommentForm = CommentFormToTemplate(post, form, errs)
		out := render(t, "post.html", page)
		assert.Contains(t, out, "The Name field is required")
		assert.NotContains(t, out, "The E-mail field is required")
		assert.Contains(t, out, `value="bob@example.com"`)
	})
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2021, 3, 25, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Less than a minute ago", relativeDate(now, now.Add(-10*time.Second)))
	assert.Equal(t, "5 minutes ago", relativeDate(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour, 30 minutes ago", relativeDate(now, now.Add(-90*time.Minute)))
	assert.Equal(t, "2 days ago", relativeDate(now, now.Add(-48*time.Hour)))
}
