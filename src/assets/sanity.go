package assets

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/quillpress/quill/src/models"
)

const SanityCDN = "https://cdn.sanity.io"

type SanityImages struct {
	ProjectID string
	Dataset   string
	// Defaults to SanityCDN.
	BaseURL string
}

var _ Resolver = SanityImages{}

// image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg
var REImageRef = regexp.MustCompile(`^image-(?P<id>[a-zA-Z0-9]+)-(?P<w>\d+)x(?P<h>\d+)-(?P<format>[a-z0-9]+)$`)

func (s SanityImages) ImageURL(ref models.AssetRef, opts ImageOptions) (string, error) {
	m := REImageRef.FindStringSubmatch(ref.Ref)
	if m == nil {
		return "", badRef(ref.Ref)
	}

	base := s.BaseURL
	if base == "" {
		base = SanityCDN
	}

	res := fmt.Sprintf("%s/images/%s/%s/%s-%sx%s.%s",
		base,
		url.PathEscape(s.ProjectID),
		url.PathEscape(s.Dataset),
		m[REImageRef.SubexpIndex("id")],
		m[REImageRef.SubexpIndex("w")],
		m[REImageRef.SubexpIndex("h")],
		m[REImageRef.SubexpIndex("format")],
	)

	query := url.Values{}
	if opts.Width > 0 {
		query.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		query.Set("h", strconv.Itoa(opts.Height))
	}
	if len(query) > 0 {
		query.Set("fit", "crop")
		res += "?" + query.Encode()
	}

	return res, nil
}
