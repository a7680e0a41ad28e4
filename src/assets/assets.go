package assets

import (
	"errors"
	"fmt"

	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/models"
)

type ImageOptions struct {
	// Zero means "as uploaded".
	Width  int
	Height int
}

// A Resolver turns an asset reference from the content store into a URL a
// browser can load. Resolving never touches the network.
type Resolver interface {
	ImageURL(ref models.AssetRef, opts ImageOptions) (string, error)
}

var ErrBadRef = errors.New("malformed asset reference")

func badRef(ref string) error {
	return fmt.Errorf("%w: %q", ErrBadRef, ref)
}

// URLFor resolves an optional image for display. Missing images resolve to
// the empty string, and bad references are logged rather than failing the
// page.
func URLFor(r Resolver, img *models.Image, opts ImageOptions) string {
	if r == nil || img.IsZero() {
		return ""
	}
	url, err := r.ImageURL(img.Asset, opts)
	if err != nil {
		logging.Warn().Err(err).Str("ref", img.Asset.Ref).Msg("failed to resolve image")
		return ""
	}
	return url
}
