package content

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/quillpress/quill/src/models"
)

func FetchPostListing(ctx context.Context, f Fetcher) ([]models.Post, error) {
	raw, err := f.Fetch(ctx, QueryPostListing, nil)
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, malformed(QueryPostListing, err)
	}
	return posts, nil
}

// FetchPostBySlug returns ErrNotFound when no post has the slug.
func FetchPostBySlug(ctx context.Context, f Fetcher, slug string) (*models.Post, error) {
	raw, err := f.Fetch(ctx, QueryPostBySlug, Params{"slug": slug})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, ErrNotFound
	}

	var post models.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, malformed(QueryPostBySlug, err)
	}
	return &post, nil
}

func FetchPostSlugs(ctx context.Context, f Fetcher) ([]models.PostPath, error) {
	raw, err := f.Fetch(ctx, QueryPostSlugs, nil)
	if err != nil {
		return nil, err
	}

	var paths []models.PostPath
	if err := json.Unmarshal(raw, &paths); err != nil {
		return nil, malformed(QueryPostSlugs, err)
	}
	return paths, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
