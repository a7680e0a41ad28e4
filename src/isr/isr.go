// Package isr serves rendered pages from a cache, regenerating them in the
// background once they are older than a staleness window. Pages that were not
// generated ahead of time are rendered on their first request.
package isr

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quillpress/quill/src/content"
)

// ErrNotFound means the route has no page, either because its content does
// not exist or because the first render of it failed.
var ErrNotFound = errors.New("page not found")

// A Page is one complete render of a route.
type Page struct {
	Status      int             `json:"status"`
	ContentType string          `json:"contentType"`
	Body        []byte          `json:"body"`
	Data        json.RawMessage `json:"data,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

func (p Page) clone() Page {
	res := p
	res.Body = append([]byte(nil), p.Body...)
	if p.Data != nil {
		res.Data = append(json.RawMessage(nil), p.Data...)
	}
	return res
}

// A RenderFunc fetches the content for route and renders it. It returns an
// error wrapping ErrNotFound or content.ErrNotFound when the content does not
// exist. GeneratedAt is set by the controller.
type RenderFunc func(ctx context.Context, route string) (*Page, error)

// A Store holds the current page of each route. Put replaces a route's page
// in a single write; readers never see a partial page.
type Store interface {
	// Get reports false if the route has no page.
	Get(ctx context.Context, route string) (Page, bool, error)
	Put(ctx context.Context, route string, page Page) error
	Delete(ctx context.Context, route string) error
}

type Outcome int

const (
	// Served from the cache inside the staleness window.
	Fresh Outcome = iota + 1
	// Served from the cache after the window; a regeneration was started.
	Stale
	// Rendered for this request.
	Generated
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Generated:
		return "generated"
	default:
		return "unknown"
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, content.ErrNotFound)
}
