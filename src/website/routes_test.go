package website

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/isr"
	"github.com/quillpress/quill/src/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogContextErrors(t *testing.T) {
	err1 := errors.New("test error 1")
	err2 := errors.New("test error 2")

	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Print("sanity check")

	assert.Contains(t, buf.String(), "sanity check")

	router := &Router{}
	routes := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			func(h Handler) Handler {
				return func(c *RequestContext) (res ResponseData) {
					c.Logger = &logger
					return logContextErrorsMiddleware(h)(c)
				}
			},
		},
	}

	routes.GET(regexp.MustCompile("^/test$"), func(c *RequestContext) ResponseData {
		return c.ErrorResponse(http.StatusInternalServerError, err1, err2)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/test")
	if assert.Nil(t, err) {
		defer res.Body.Close()

		t.Logf("Log contents: %s", buf.String())

		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

		assert.Contains(t, buf.String(), err1.Error())
		assert.Contains(t, buf.String(), err2.Error())
	}
}

func TestRouterParamsAndTrailingSlash(t *testing.T) {
	router := &Router{}
	routes := RouteBuilder{Router: router}
	routes.GET(hmnurl.RegexPost, func(c *RequestContext) ResponseData {
		var res ResponseData
		res.Write([]byte(c.PathParams["slug"]))
		return res
	})
	routes.AnyMethod(hmnurl.RegexCatchAll, FourOhFour)

	srv := httptest.NewServer(router)
	defer srv.Close()

	for _, path := range []string{"/post/hello", "/post/hello/"} {
		res, err := http.Get(srv.URL + path)
		require.Nil(t, err)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Equal(t, "hello", string(body), path)
	}

	res, err := http.Post(srv.URL+"/post/hello", "text/plain", nil)
	require.Nil(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "GET routes do not answer POST")
}

// fakeFetcher serves a fixed set of posts for the three post queries.
type fakeFetcher struct {
	mu          sync.Mutex
	posts       map[string]string // slug -> title
	ids         map[string]string // slug -> id
	err         error
	slugFetches map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts:       map[string]string{"hello-world": "Hello, World", "second": "Second post"},
		ids:         map[string]string{"hello-world": "p1", "second": "p2"},
		slugFetches: map[string]int{},
	}
}

func (f *fakeFetcher) setTitle(slug, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[slug] = title
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) fetchesOf(slug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slugFetches[slug]
}

func (f *fakeFetcher) postJson(slug string) map[string]any {
	return map[string]any{
		"_id":         f.ids[slug],
		"_createdAt":  "2021-03-25T12:00:00Z",
		"title":       f.posts[slug],
		"description": "About " + slug,
		"slug":        map[string]any{"current": slug},
		"author":      map[string]any{"name": "Ada"},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, q content.Query, params content.Params) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var result any
	switch q.Name {
	case content.QueryPostListing.Name:
		var list []map[string]any
		for _, slug := range []string{"hello-world", "second"} {
			if _, ok := f.posts[slug]; ok {
				list = append(list, f.postJson(slug))
			}
		}
		result = list
	case content.QueryPostSlugs.Name:
		var list []map[string]any
		for slug := range f.posts {
			list = append(list, map[string]any{"_id": f.ids[slug], "slug": map[string]any{"current": slug}})
		}
		result = list
	case content.QueryPostBySlug.Name:
		slug, _ := params["slug"].(string)
		f.slugFetches[slug]++
		if _, ok := f.posts[slug]; !ok {
			return json.RawMessage("null"), nil
		}
		post := f.postJson(slug)
		post["body"] = []any{map[string]any{
			"_type": "block", "_key": "b1", "style": "normal", "markDefs": []any{},
			"children": []any{map[string]any{"_type": "span", "_key": "s1", "text": "Body of " + slug, "marks": []any{}}},
		}}
		post["comments"] = []any{map[string]any{"_id": "c1", "_createdAt": "2021-03-26T12:00:00Z", "name": "Bob", "comment": "Nice post"}}
		result = post
	default:
		return nil, fmt.Errorf("unexpected query %q", q.Name)
	}

	raw, err := json.Marshal(result)
	return raw, err
}

type recordingSink struct {
	mu     sync.Mutex
	drafts []comments.Draft
	err    error
}

func (s *recordingSink) Submit(ctx context.Context, d comments.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, d)
	return s.err
}

func (s *recordingSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) received() []comments.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]comments.Draft(nil), s.drafts...)
}

type recordingStore struct {
	mu     sync.Mutex
	drafts []comments.Draft
	err    error
}

func (s *recordingStore) CreateComment(ctx context.Context, d comments.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.drafts = append(s.drafts, d)
	return fmt.Sprintf("c%d", len(s.drafts)), nil
}

func (s *recordingStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingStore) created() []comments.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]comments.Draft(nil), s.drafts...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testSite struct {
	*httptest.Server
	fetcher *fakeFetcher
	sink    *recordingSink
	store   *recordingStore
	clock   *fakeClock
	job     *jobs.Job
	s       *Services
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	site := &testSite{
		fetcher: newFakeFetcher(),
		sink:    &recordingSink{},
		store:   &recordingStore{},
		clock:   &fakeClock{now: time.Date(2021, 3, 25, 12, 0, 0, 0, time.UTC)},
	}
	controller, job := isr.NewController(isr.NewMemoryStore(), RenderPostPage(site.fetcher, nil), isr.Options{
		StaleWindow:     time.Minute,
		EvictOnNotFound: true,
		Now:             site.clock.Now,
	})
	site.job = job
	site.s = &Services{
		Fetcher:          site.fetcher,
		Controller:       controller,
		CommentSink:      site.sink,
		CommentStore:     site.store,
		RevalidateSecret: "hunter2",
	}
	site.Server = httptest.NewServer(NewWebsiteRoutes(site.s, nil))
	t.Cleanup(func() {
		site.Server.Close()
		jobs.Jobs{job}.CancelAndWait(time.Second)
	})
	return site
}

func (s *testSite) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.Nil(t, err)
	return res, string(body)
}

func (s *testSite) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.Nil(t, err)
	req.Header.Set("Accept", "text/html")
	return s.do(t, req)
}

func (s *testSite) postForm(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+path, strings.NewReader(values.Encode()))
	require.Nil(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return s.do(t, req)
}

func (s *testSite) postJson(t *testing.T, path string, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+path, strings.NewReader(body))
	require.Nil(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.do(t, req)
}

func TestIndex(t *testing.T) {
	site := newTestSite(t)

	res, body := site.get(t, "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hello, World")
	assert.Contains(t, body, "Second post")
	assert.Contains(t, body, "/post/hello-world")

	// The listing is always dynamic.
	site.fetcher.setTitle("second", "Renamed")
	_, body = site.get(t, "/")
	assert.Contains(t, body, "Renamed")

	site.fetcher.setErr(errors.New("sanity is down"))
	res, body = site.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, body, "The list of posts could not be loaded.")
}

func TestPostPageCaching(t *testing.T) {
	site := newTestSite(t)

	res, body := site.get(t, "/post/hello-world")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "generated", res.Header.Get(cacheHeader))
	assert.Contains(t, body, "Hello, World")
	assert.Contains(t, body, "Body of hello-world")
	assert.Contains(t, body, "Nice post")
	assert.Contains(t, body, `data-state="not-submitted"`)

	res, _ = site.get(t, "/post/hello-world")
	assert.Equal(t, "fresh", res.Header.Get(cacheHeader))
	assert.Equal(t, 1, site.fetcher.fetchesOf("hello-world"))

	// Past the window the old page is still served, and regenerated behind
	// the scenes.
	site.fetcher.setTitle("hello-world", "Hello again")
	site.clock.Advance(2 * time.Minute)
	res, body = site.get(t, "/post/hello-world")
	assert.Equal(t, "stale", res.Header.Get(cacheHeader))
	assert.Contains(t, body, "Hello, World")

	assert.Eventually(t, func() bool {
		res, err := http.Get(site.URL + "/post/hello-world")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return strings.Contains(string(body), "Hello again")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostPagePrerendered(t *testing.T) {
	site := newTestSite(t)

	require.Nil(t, site.s.Controller.Prerender(context.Background(), []string{hmnurl.PostRoute("second")}))
	res, body := site.get(t, "/post/second")
	assert.Equal(t, "fresh", res.Header.Get(cacheHeader))
	assert.Contains(t, body, "Second post")
	assert.Equal(t, 1, site.fetcher.fetchesOf("second"))
}

func TestPostPageNotFound(t *testing.T) {
	site := newTestSite(t)

	res, _ := site.get(t, "/post/nope")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	site.fetcher.setErr(errors.New("timeout"))
	res, _ = site.get(t, "/post/hello-world")
	assert.Equal(t, http.StatusNotFound, res.StatusCode, "fallback errors answer not found")

	site.fetcher.setErr(nil)
	res, _ = site.get(t, "/post/hello-world")
	assert.Equal(t, http.StatusOK, res.StatusCode, "nothing was cached by the failure")
	assert.Equal(t, "generated", res.Header.Get(cacheHeader))
}

func TestCatchAll(t *testing.T) {
	site := newTestSite(t)

	for _, path := range []string{"/nope", "/post", "/post/a/b/c", "/public/missing.css"} {
		res, _ := site.get(t, path)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
	}
}

func TestPostCommentWithoutJS(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		site := newTestSite(t)
		res, body := site.postForm(t, "/post/hello-world/comment", url.Values{
			"_id":     {"ignored"},
			"name":    {"Ada"},
			"email":   {"ada@example.com"},
			"comment": {"Great read"},
		})
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, body, "Thank you for submitting your comment!")
		drafts := site.sink.received()
		require.Len(t, drafts, 1)
		assert.Equal(t, comments.Draft{PostID: "p1", Name: "Ada", Email: "ada@example.com", Comment: "Great read"}, drafts[0])
	})
	t.Run("validation", func(t *testing.T) {
		site := newTestSite(t)
		res, body := site.postForm(t, "/post/hello-world/comment", url.Values{
			"email":   {"ada@example.com"},
			"comment": {"Great read"},
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Contains(t, body, "The Name field is required")
		assert.Contains(t, body, `value="ada@example.com"`)
		assert.Empty(t, site.sink.received())
	})
	t.Run("sink failure keeps values", func(t *testing.T) {
		site := newTestSite(t)
		site.sink.setErr(&comments.SinkError{Kind: comments.Rejected, StatusCode: http.StatusInternalServerError})
		res, body := site.postForm(t, "/post/hello-world/comment", url.Values{
			"name":    {"Ada"},
			"email":   {"ada@example.com"},
			"comment": {"Great read"},
		})
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
		assert.Contains(t, body, "Your comment could not be submitted.")
		assert.Contains(t, body, "Great read")
		assert.Contains(t, body, `data-state="failed"`)
	})
	t.Run("unknown post", func(t *testing.T) {
		site := newTestSite(t)
		res, _ := site.postForm(t, "/post/nope/comment", url.Values{"name": {"Ada"}})
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})
	t.Run("comment pages are not cached", func(t *testing.T) {
		site := newTestSite(t)
		site.postForm(t, "/post/hello-world/comment", url.Values{
			"name":    {"Ada"},
			"email":   {"ada@example.com"},
			"comment": {"Great read"},
		})
		_, body := site.get(t, "/post/hello-world")
		assert.Contains(t, body, `data-state="not-submitted"`)
	})
}

func TestAPICreateComment(t *testing.T) {
	site := newTestSite(t)

	res, body := site.postJson(t, "/api/createComment", `{"_id":"p1","name":"Ada","email":"ada@example.com","comment":"Hi"}`, nil)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.JSONEq(t, `{"id":"c1"}`, body)
	created := site.store.created()
	require.Len(t, created, 1)
	assert.Equal(t, "p1", created[0].PostID)

	res, body = site.postJson(t, "/api/createComment", `{"_id":"p1","name":"","email":"ada@example.com","comment":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var resp apiCommentResponse
	require.Nil(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "name", resp.Fields[0].Field)
	assert.Equal(t, "comment", resp.Fields[1].Field)

	res, _ = site.postJson(t, "/api/createComment", `{"name":"Ada","email":"ada@example.com","comment":"Hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, "missing post id")

	res, _ = site.postJson(t, "/api/createComment", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	site.store.setErr(comments.ErrUnknownPost)
	res, _ = site.postJson(t, "/api/createComment", `{"_id":"zzz","name":"Ada","email":"ada@example.com","comment":"Hi"}`, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	site.store.setErr(errors.New("connection reset"))
	res, _ = site.postJson(t, "/api/createComment", `{"_id":"p1","name":"Ada","email":"ada@example.com","comment":"Hi"}`, nil)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

func TestAPIRevalidate(t *testing.T) {
	site := newTestSite(t)
	auth := map[string]string{"Authorization": "Bearer hunter2"}
	revalidatePath := "/api/revalidate?path=" + url.QueryEscape("/post/hello-world")

	res, _ := site.postJson(t, revalidatePath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = site.postJson(t, revalidatePath, "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	site.get(t, "/post/hello-world")
	site.fetcher.setTitle("hello-world", "Edited title")

	res, body := site.postJson(t, revalidatePath, "", auth)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var resp revalidateResponse
	require.Nil(t, json.Unmarshal([]byte(body), &resp))
	assert.True(t, resp.Revalidated)
	assert.Equal(t, "/post/hello-world", resp.Path)

	// Still inside the window, but the page is already new.
	res, body = site.get(t, "/post/hello-world")
	assert.Equal(t, "fresh", res.Header.Get(cacheHeader))
	assert.Contains(t, body, "Edited title")

	res, _ = site.postJson(t, "/api/revalidate?path=/post/nope", "", auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = site.postJson(t, "/api/revalidate?path=/about", "", auth)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAPIRevalidateDisabledWithoutSecret(t *testing.T) {
	site := newTestSite(t)
	services := *site.s
	services.RevalidateSecret = ""
	srv := httptest.NewServer(NewWebsiteRoutes(&services, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/revalidate?path=/post/hello-world", nil)
	require.Nil(t, err)
	req.Header.Set("Authorization", "Bearer ")
	res, _ := site.do(t, req)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, 0, site.fetcher.fetchesOf("hello-world"))
}

func TestSlugFromRoute(t *testing.T) {
	for _, slug := range []string{"hello", "with space", "ünïcode"} {
		got, ok := slugFromRoute(hmnurl.PostRoute(slug))
		assert.True(t, ok, slug)
		assert.Equal(t, slug, got)
	}

	for _, route := range []string{"", "/", "/post/", "/about", "/post/a/b", "/post/%zz"} {
		_, ok := slugFromRoute(route)
		assert.False(t, ok, route)
	}
}
