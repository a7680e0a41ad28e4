package website

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/quillpress/quill/src/assets"
	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/isr"
	"github.com/quillpress/quill/src/models"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/portabletext"
	"github.com/quillpress/quill/src/templates"
	"github.com/quillpress/quill/src/utils"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	// Tells clients (and tests) how a detail page was produced.
	cacheHeader = "X-Quill-Cache"

	maxDescriptionLength = 160
)

func Index(s *Services) Handler {
	return func(c *RequestContext) ResponseData {
		posts, err := content.FetchPostListing(c, s.Fetcher)
		if err != nil {
			return c.ErrorResponse(http.StatusInternalServerError, NewSafeError(oops.New(err, "failed to fetch post listing"), "The list of posts could not be loaded."))
		}

		page := templates.IndexPage{
			BaseData: getBaseData("", hmnurl.BuildHomepage()),
		}
		for i := range posts {
			if utils.IsBlank(posts[i].Slug.Current) {
				continue
			}
			page.Posts = append(page.Posts, templates.PostToListItem(&posts[i], s.Images))
		}

		var res ResponseData
		res.MustWriteTemplate("index.html", page, c.Perf)
		return res
	}
}

func PostPage(s *Services) Handler {
	return func(c *RequestContext) ResponseData {
		slug := c.PathParams["slug"]
		if utils.IsBlank(slug) {
			return FourOhFour(c)
		}

		page, outcome, err := s.Controller.Serve(c, hmnurl.PostRoute(slug))
		if err != nil {
			if errors.Is(err, isr.ErrNotFound) {
				return FourOhFour(c)
			}
			return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to serve post %s", slug))
		}

		var res ResponseData
		res.StatusCode = page.Status
		res.Header().Set("Content-Type", utils.OrDefault(page.ContentType, htmlContentType))
		res.Header().Set(cacheHeader, outcome.String())
		res.Write(page.Body)
		return res
	}
}

// RenderPostPage builds the cached detail page for a route. The shared page
// always shows a blank comment form.
func RenderPostPage(fetcher content.Fetcher, images assets.Resolver) isr.RenderFunc {
	return func(ctx context.Context, route string) (*isr.Page, error) {
		slug, ok := slugFromRoute(route)
		if !ok {
			return nil, isr.ErrNotFound
		}

		post, err := content.FetchPostBySlug(ctx, fetcher, slug)
		if err != nil {
			return nil, err
		}

		data, err := postPageData(post, images, nil, nil)
		if err != nil {
			return nil, err
		}

		var res ResponseData
		if err := res.WriteTemplate("post.html", data, perf.ExtractPerf(ctx)); err != nil {
			return nil, oops.New(err, "failed to render post %s", slug)
		}

		postJson, err := json.Marshal(post)
		if err != nil {
			return nil, oops.New(err, "failed to encode page data for post %s", slug)
		}

		return &isr.Page{
			Status:      http.StatusOK,
			ContentType: htmlContentType,
			Body:        res.Body.Bytes(),
			Data:        postJson,
		}, nil
	}
}

// slugFromRoute undoes hmnurl.PostRoute.
func slugFromRoute(route string) (string, bool) {
	unescaped, err := url.PathUnescape(route)
	if err != nil {
		return "", false
	}
	match := hmnurl.RegexPost.FindStringSubmatch(unescaped)
	if match == nil {
		return "", false
	}
	slug := match[hmnurl.RegexPost.SubexpIndex("slug")]
	if utils.IsBlank(slug) {
		return "", false
	}
	return slug, true
}

func postPageData(post *models.Post, images assets.Resolver, form *comments.Form, errs comments.ValidationErrors) (templates.PostPage, error) {
	doc, err := portabletext.Decode(post.Body)
	if err != nil {
		return templates.PostPage{}, oops.New(err, "failed to decode body of post %s", post.Slug.Current)
	}

	tmplPost := templates.PostToTemplate(post, images)
	tmplPost.Body = portabletext.RenderHTML(doc, portabletext.HTMLSerializers(portabletext.HTMLOptions{
		Images:     images,
		ImageWidth: templates.MainImageWidth,
	}))

	baseData := getBaseData(post.Title, tmplPost.Url)
	baseData.Description = post.Description
	if baseData.Description == "" {
		baseData.Description = utils.Truncate(portabletext.PlainText(doc), maxDescriptionLength)
	}
	baseData.OpenGraphItems = buildOpenGraphItems(tmplPost)

	return templates.PostPage{
		BaseData:    baseData,
		Post:        tmplPost,
		Comments:    templates.CommentsToTemplate(post.Comments),
		CommentForm: templates.CommentFormToTemplate(post, form, errs),
	}, nil
}
