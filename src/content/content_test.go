package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `{
	"_id": "post-1",
	"_createdAt": "2021-03-25T12:00:00Z",
	"title": "Hello",
	"description": "A first post",
	"slug": {"current": "hello"},
	"author": {"name": "Ada", "image": {"asset": {"_ref": "image-a-1x1-png"}}},
	"mainImage": {"asset": {"_ref": "image-b-2x2-jpg"}},
	"body": [{"_type": "block", "children": [{"_type": "span", "text": "hi"}]}],
	"comments": [{"_id": "c1", "_createdAt": "2021-03-26T00:00:00Z", "name": "Bob", "comment": "nice"}]
}`

func sanityServer(t *testing.T, handler http.HandlerFunc) *SanityClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSanityClient(config.SanityConfig{
		ProjectID: "abc123",
		APIHost:   srv.URL,
		Token:     "secret-token",
	})
}

func TestEncodeParams(t *testing.T) {
	values, err := EncodeParams(QueryPostBySlug.GROQ, Params{"slug": `x" || _type == "comment`})
	require.Nil(t, err)
	assert.Equal(t, QueryPostBySlug.GROQ, values.Get("query"))
	assert.Equal(t, `"x\" || _type == \"comment"`, values.Get("$slug"))

	_, err = EncodeParams("*", Params{"bad": make(chan int)})
	assert.NotNil(t, err)
}

func TestSanityHost(t *testing.T) {
	c := NewSanityClient(config.SanityConfig{ProjectID: "abc123"})
	assert.Equal(t, "https://abc123.api.sanity.io", c.Host())
	assert.Equal(t, "https://abc123.api.sanity.io/v2021-03-25/data/query/production", c.apiURL("query"))

	c.UseCdn = true
	assert.Equal(t, "https://abc123.apicdn.sanity.io", c.Host())
}

func TestSanityFetch(t *testing.T) {
	t.Run("post by slug", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2021-03-25/data/query/production", r.URL.Path)
			assert.Equal(t, QueryPostBySlug.GROQ, r.URL.Query().Get("query"))
			assert.Equal(t, `"hello"`, r.URL.Query().Get("$slug"))
			assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
			w.Write([]byte(`{"ms": 3, "query": "...", "result": ` + samplePost + `}`))
		})

		post, err := FetchPostBySlug(context.Background(), c, "hello")
		require.Nil(t, err)
		assert.Equal(t, "post-1", post.ID)
		assert.Equal(t, "Hello", post.Title)
		assert.Equal(t, "hello", post.Slug.Current)
		assert.Equal(t, "Ada", post.Author.Name)
		assert.Equal(t, "image-b-2x2-jpg", post.MainImage.Asset.Ref)
		assert.Equal(t, time.Date(2021, 3, 25, 12, 0, 0, 0, time.UTC), post.CreatedAt.UTC())
		require.Len(t, post.Comments, 1)
		assert.Equal(t, "nice", post.Comments[0].Comment)
		assert.True(t, json.Valid(post.Body))
	})
	t.Run("null result is not found", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": null}`))
		})
		_, err := FetchPostBySlug(context.Background(), c, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
	t.Run("listing and slugs", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("query") {
			case QueryPostListing.GROQ:
				w.Write([]byte(`{"result": [` + samplePost + `]}`))
			case QueryPostSlugs.GROQ:
				w.Write([]byte(`{"result": [{"_id": "post-1", "slug": {"current": "hello"}}, {"_id": "post-2", "slug": {"current": "world"}}]}`))
			default:
				w.WriteHeader(http.StatusBadRequest)
			}
		})

		posts, err := FetchPostListing(context.Background(), c)
		require.Nil(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "Hello", posts[0].Title)

		paths, err := FetchPostSlugs(context.Background(), c)
		require.Nil(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, "world", paths[1].Slug.Current)
	})
	t.Run("error status", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "boom"}`))
		})
		_, err := FetchPostListing(context.Background(), c)
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, Network, fe.Kind)
		assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
		assert.Contains(t, fe.Error(), "boom")
	})
	t.Run("malformed body", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>definitely not json</html>`))
		})
		_, err := FetchPostListing(context.Background(), c)
		assert.True(t, IsKind(err, Malformed))
	})
	t.Run("missing result", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ms": 1}`))
		})
		_, err := FetchPostListing(context.Background(), c)
		assert.True(t, IsKind(err, Malformed))
	})
	t.Run("result of the wrong shape", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result": {"not": "a list"}}`))
		})
		_, err := FetchPostListing(context.Background(), c)
		assert.True(t, IsKind(err, Malformed))
	})
	t.Run("timeout", func(t *testing.T) {
		c := sanityServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := FetchPostListing(ctx, c)
		assert.True(t, IsKind(err, Timeout), "got %v", err)
	})
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewSanityClient(config.SanityConfig{ProjectID: "abc123", APIHost: url})
		_, err := FetchPostListing(context.Background(), c)
		assert.True(t, IsKind(err, Network), "got %v", err)
	})
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

type fakeConn struct {
	db.ConnOrTx

	row  fakeRow
	sql  string
	args []any
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.sql = sql
	c.args = args
	return c.row
}

func TestPostgresFetch(t *testing.T) {
	t.Run("passes named args", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{data: []byte(samplePost)}}
		post, err := FetchPostBySlug(context.Background(), &PostgresFetcher{Conn: conn}, "hello")
		require.Nil(t, err)
		assert.Equal(t, "Hello", post.Title)
		assert.Equal(t, QueryPostBySlug.SQL, conn.sql)
		require.Len(t, conn.args, 1)
		assert.Equal(t, pgx.NamedArgs{"slug": "hello"}, conn.args[0])
	})
	t.Run("no rows is not found", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{err: pgx.ErrNoRows}}
		_, err := FetchPostBySlug(context.Background(), &PostgresFetcher{Conn: conn}, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
	t.Run("sql null is not found", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{data: nil}}
		_, err := FetchPostBySlug(context.Background(), &PostgresFetcher{Conn: conn}, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
	t.Run("query errors are malformed", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{err: &pgconn.PgError{Code: "42P01", Message: `relation "post" does not exist`}}}
		_, err := FetchPostListing(context.Background(), &PostgresFetcher{Conn: conn})
		assert.True(t, IsKind(err, Malformed))
	})
	t.Run("connection errors are network", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{err: errors.New("connection reset by peer")}}
		_, err := FetchPostListing(context.Background(), &PostgresFetcher{Conn: conn})
		assert.True(t, IsKind(err, Network))
	})
	t.Run("deadline is timeout", func(t *testing.T) {
		conn := &fakeConn{row: fakeRow{err: context.DeadlineExceeded}}
		_, err := FetchPostListing(context.Background(), &PostgresFetcher{Conn: conn})
		assert.True(t, IsKind(err, Timeout))
	})
}

func TestMutateURL(t *testing.T) {
	c := NewSanityClient(config.SanityConfig{ProjectID: "abc123", Dataset: "blog", UseCdn: true})
	assert.Equal(t, "https://abc123.api.sanity.io/v2021-03-25/data/mutate/blog?returnIds=true", c.MutateURL())
	assert.True(t, c.UseCdn)
}
