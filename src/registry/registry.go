// Package registry enumerates the posts that exist at startup, so their
// pages can be generated before the server accepts requests.
package registry

import (
	"context"
	"strings"

	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/hmnurl"
)

type Path struct {
	Slug string
}

// Route is the cache key of the path's detail page.
func (p Path) Route() string {
	return hmnurl.PostRoute(p.Slug)
}

// ListKnownPaths returns every post slug the content store knows about, in
// the order the store returns them. Errors from the store are returned
// unchanged; callers cannot generate anything with an unknown path set.
func ListKnownPaths(ctx context.Context, f content.Fetcher) ([]Path, error) {
	posts, err := content.FetchPostSlugs(ctx, f)
	if err != nil {
		return nil, err
	}

	paths := make([]Path, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		slug := strings.TrimSpace(p.Slug.Current)
		// Drafts can exist without a slug. They have no page.
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		paths = append(paths, Path{Slug: slug})
	}
	return paths, nil
}

func Routes(paths []Path) []string {
	routes := make([]string, len(paths))
	for i, p := range paths {
		routes[i] = p.Route()
	}
	return routes
}
