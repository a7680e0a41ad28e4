package website

import (
	"errors"
	"net/http"
	"time"

	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/isr"
	"github.com/quillpress/quill/src/oops"
)

type revalidateResponse struct {
	Path        string     `json:"path"`
	Revalidated bool       `json:"revalidated"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// APIRevalidate regenerates one detail page right away. The content store
// calls it from a publish webhook.
func APIRevalidate(s *Services) Handler {
	return func(c *RequestContext) ResponseData {
		requested := c.Req.URL.Query().Get("path")
		slug, ok := slugFromRoute(requested)
		if !ok {
			return c.JsonResponse(http.StatusBadRequest, revalidateResponse{Path: requested, Error: "path must be a post page"})
		}
		route := hmnurl.PostRoute(slug)

		page, err := s.Controller.Revalidate(c, route)
		if err != nil {
			if errors.Is(err, isr.ErrNotFound) {
				return c.JsonResponse(http.StatusNotFound, revalidateResponse{Path: route, Error: "post not found"})
			}
			return c.JsonResponse(http.StatusBadGateway, revalidateResponse{Path: route, Error: "regeneration failed"}, oops.New(err, "failed to revalidate %s", route))
		}

		c.Logger.Info().Str("route", route).Msg("revalidated page on demand")
		return c.JsonResponse(http.StatusOK, revalidateResponse{
			Path:        route,
			Revalidated: true,
			GeneratedAt: &page.GeneratedAt,
		})
	}
}
