package website

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/utils"
)

const maxCommentBodyBytes = 64 * 1024

// PostComment handles the comment form when it is submitted without
// JavaScript. It runs one Form for the request and renders the post page
// with whatever state the form ended up in. These pages are never cached.
func PostComment(s *Services) Handler {
	return func(c *RequestContext) ResponseData {
		slug := c.PathParams["slug"]
		if utils.IsBlank(slug) {
			return FourOhFour(c)
		}

		values, err := c.GetFormValues()
		if err != nil {
			return c.ErrorResponse(http.StatusBadRequest, NewSafeError(err, "The comment form could not be read."))
		}

		post, err := content.FetchPostBySlug(c, s.Fetcher, slug)
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				return FourOhFour(c)
			}
			return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to fetch post %s for comment", slug))
		}

		form := comments.NewForm(post.ID, s.CommentSink)
		submitErr := form.Submit(c, comments.Draft{
			Name:    values.Get("name"),
			Email:   values.Get("email"),
			Comment: values.Get("comment"),
		})

		var res ResponseData
		var validationErrs comments.ValidationErrors
		switch {
		case submitErr == nil:
			res.StatusCode = http.StatusOK
		case errors.As(submitErr, &validationErrs):
			res.StatusCode = http.StatusBadRequest
		default:
			c.Logger.Warn().Err(submitErr).Str("post", post.ID).Msg("comment submission failed")
			res.StatusCode = http.StatusBadGateway
		}

		data, err := postPageData(post, s.Images, form, validationErrs)
		if err != nil {
			return c.ErrorResponse(http.StatusInternalServerError, err)
		}
		res.MustWriteTemplate("post.html", data, c.Perf)
		return res
	}
}

// PostCommentRedirect sends readers who reload the comment URL back to the
// post.
func PostCommentRedirect(c *RequestContext) ResponseData {
	slug := c.PathParams["slug"]
	if utils.IsBlank(slug) {
		return FourOhFour(c)
	}
	return c.Redirect(hmnurl.BuildPost(slug), http.StatusSeeOther)
}

type apiFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type apiCommentResponse struct {
	ID     string          `json:"id,omitempty"`
	Error  string          `json:"error,omitempty"`
	Fields []apiFieldError `json:"fields,omitempty"`
}

// APICreateComment is the endpoint comment.js posts to. It stores the
// comment as unapproved.
func APICreateComment(s *Services) Handler {
	return func(c *RequestContext) ResponseData {
		body, err := io.ReadAll(io.LimitReader(c.Req.Body, maxCommentBodyBytes))
		if err != nil {
			return c.JsonResponse(http.StatusBadRequest, apiCommentResponse{Error: "failed to read request body"})
		}

		var draft comments.Draft
		if err := json.Unmarshal(body, &draft); err != nil {
			return c.JsonResponse(http.StatusBadRequest, apiCommentResponse{Error: "request body must be a JSON object"})
		}

		if utils.IsBlank(draft.PostID) {
			return c.JsonResponse(http.StatusBadRequest, apiCommentResponse{Error: "missing post id"})
		}
		if errs := comments.Validate(draft); len(errs) > 0 {
			resp := apiCommentResponse{Error: "invalid comment"}
			for _, e := range errs {
				resp.Fields = append(resp.Fields, apiFieldError{Field: string(e.Field), Message: e.Error()})
			}
			return c.JsonResponse(http.StatusBadRequest, resp)
		}

		id, err := s.CommentStore.CreateComment(c, draft)
		if err != nil {
			if errors.Is(err, comments.ErrUnknownPost) {
				return c.JsonResponse(http.StatusNotFound, apiCommentResponse{Error: "unknown post"})
			}
			return c.JsonResponse(http.StatusBadGateway, apiCommentResponse{Error: "the comment could not be stored"}, oops.New(err, "failed to store comment"))
		}

		return c.JsonResponse(http.StatusCreated, apiCommentResponse{ID: id})
	}
}
