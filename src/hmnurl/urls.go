package hmnurl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/quillpress/quill/src/oops"
)

var RegexHomepage = regexp.MustCompile("^/$")

func BuildHomepage() string {
	return Url("/", nil)
}

var RegexPost = regexp.MustCompile(`^/post/(?P<slug>[^/]+)$`)

func BuildPost(slug string) string {
	return Url(PostRoute(slug), nil)
}

// PostRoute is the path of a post's page, without the base URL. Page caches
// are keyed on this.
func PostRoute(slug string) string {
	if strings.TrimSpace(slug) == "" {
		panic(oops.New(nil, "Attempted to build a post url with no slug"))
	}
	return "/post/" + url.PathEscape(slug)
}

var RegexPostComment = regexp.MustCompile(`^/post/(?P<slug>[^/]+)/comment$`)

func BuildPostComment(slug string) string {
	return Url(PostRoute(slug)+"/comment", nil)
}

var RegexAPICreateComment = regexp.MustCompile("^/api/createComment$")

func BuildAPICreateComment() string {
	return Url("/api/createComment", nil)
}

var RegexAPIRevalidate = regexp.MustCompile("^/api/revalidate$")

func BuildAPIRevalidate(route string) string {
	return Url("/api/revalidate", []Q{{"path", route}})
}

var RegexPublic = regexp.MustCompile("^/public/.+$")

func BuildPublic(filepath string) string {
	filepath = strings.Trim(filepath, "/")
	if len(strings.TrimSpace(filepath)) == 0 {
		panic(oops.New(nil, "Attempted to build a /public url with no path"))
	}
	var builder strings.Builder
	builder.WriteString(StaticPath)
	pathParts := strings.Split(filepath, "/")
	for _, part := range pathParts {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			panic(oops.New(nil, "Attempted to build a /public url with blank path segments: %s", filepath))
		}
		builder.WriteRune('/')
		builder.WriteString(part)
	}
	return Url(builder.String(), nil)
}

var RegexCatchAll = regexp.MustCompile("^")
