package models

import (
	"encoding/json"
	"time"
)

type Slug struct {
	Current string `json:"current"`
}

// AssetRef points at an uploaded asset. For Sanity this looks like
// "image-<id>-<w>x<h>-<format>"; for self-hosted content it is an S3 key.
type AssetRef struct {
	Ref string `json:"_ref"`
}

type Image struct {
	Asset AssetRef `json:"asset"`
	Alt   string   `json:"alt,omitempty"`
}

func (img *Image) IsZero() bool {
	return img == nil || img.Asset.Ref == ""
}

type Author struct {
	Name  string `json:"name"`
	Image *Image `json:"image,omitempty"`
}

// Post is also used for listing results, in which case Body and Comments are
// empty.
type Post struct {
	ID          string    `json:"_id"`
	CreatedAt   time.Time `json:"_createdAt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        Slug      `json:"slug"`
	Author      *Author   `json:"author,omitempty"`
	MainImage   *Image    `json:"mainImage,omitempty"`

	// Portable Text, decoded by the portabletext package at render time.
	Body json.RawMessage `json:"body,omitempty"`

	Comments []Comment `json:"comments,omitempty"`
}

// PostPath is the minimal projection used to build the list of known routes.
type PostPath struct {
	ID   string `json:"_id"`
	Slug Slug   `json:"slug"`
}
