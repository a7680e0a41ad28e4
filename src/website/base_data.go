package website

import (
	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/templates"
)

// getBaseData does not depend on the request, because detail pages are
// rendered ahead of time and shared by every reader.
func getBaseData(title string, canonicalUrl string) templates.BaseData {
	return templates.BaseData{
		Title:         title,
		CanonicalLink: canonicalUrl,
		Site: templates.Site{
			Title:       config.Config.Site.Title,
			AccentColor: config.Config.Site.AccentColor,
		},
		Header: templates.Header{
			HomepageUrl: hmnurl.BuildHomepage(),
		},
	}
}

func buildOpenGraphItems(p templates.Post) []templates.OpenGraphItem {
	items := []templates.OpenGraphItem{
		{Property: "og:site_name", Value: config.Config.Site.Title},
		{Property: "og:type", Value: "article"},
		{Property: "og:title", Value: p.Title},
		{Property: "og:url", Value: p.Url},
	}
	if p.Description != "" {
		items = append(items, templates.OpenGraphItem{Property: "og:description", Value: p.Description})
	}
	if p.MainImageUrl != "" {
		items = append(items, templates.OpenGraphItem{Property: "og:image", Value: p.MainImageUrl})
	}
	return items
}
