package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/db"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/utils"
)

// ErrUnknownPost means the draft names a post that does not exist.
var ErrUnknownPost = errors.New("no post with that id")

// A Store persists comments. New comments are always unapproved, so they do
// not show up on the post until a moderator approves them.
type Store interface {
	CreateComment(ctx context.Context, d Draft) (string, error)
}

// SanityStore creates comment documents through the Sanity mutations API.
type SanityStore struct {
	Client *content.SanityClient
}

var _ Store = &SanityStore{}

type sanityReference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

type sanityComment struct {
	Type     string          `json:"_type"`
	Post     sanityReference `json:"post"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Comment  string          `json:"comment"`
	Approved bool            `json:"approved"`
}

type sanityMutations struct {
	Mutations []map[string]any `json:"mutations"`
}

type sanityMutationResult struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

func (s *SanityStore) CreateComment(ctx context.Context, d Draft) (string, error) {
	b := perf.ExtractPerf(ctx).StartBlock("CONTENT", "create comment")
	defer b.End()

	body, err := json.Marshal(sanityMutations{
		Mutations: []map[string]any{
			{"create": sanityComment{
				Type:    "comment",
				Post:    sanityReference{Type: "reference", Ref: d.PostID},
				Name:    d.Name,
				Email:   d.Email,
				Comment: d.Comment,
			}},
		},
	})
	if err != nil {
		return "", oops.New(err, "failed to encode comment mutation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Client.MutateURL(), bytes.NewReader(body))
	if err != nil {
		return "", oops.New(err, "failed to build comment mutation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Client.Token)

	client := s.Client.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return "", oops.New(err, "failed to send comment to sanity")
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", oops.New(err, "failed to read sanity mutation response")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Sanity refuses references to documents that don't exist.
		if res.StatusCode == http.StatusBadRequest && strings.Contains(string(resBody), d.PostID) {
			return "", oops.New(ErrUnknownPost, "sanity rejected comment for post %s", d.PostID)
		}
		return "", oops.New(nil, "sanity mutation failed with status %d: %s", res.StatusCode, utils.Truncate(string(resBody), 300))
	}

	var result sanityMutationResult
	if err := json.Unmarshal(resBody, &result); err != nil {
		return "", oops.New(err, "failed to decode sanity mutation response")
	}
	if len(result.Results) == 0 {
		return "", oops.New(nil, "sanity mutation %s created nothing", result.TransactionID)
	}
	return result.Results[0].ID, nil
}

// PostgresStore inserts comments into the self-hosted content database.
type PostgresStore struct {
	Conn db.ConnOrTx
	// Defaults to time.Now.
	Now func() time.Time
}

var _ Store = &PostgresStore{}

const pgForeignKeyViolation = "23503"

func (s *PostgresStore) CreateComment(ctx context.Context, d Draft) (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	id := uuid.New().String()
	_, err := s.Conn.Exec(ctx,
		`
		---- Create comment
		INSERT INTO comment (id, post_id, name, email, comment, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		`,
		id, d.PostID, d.Name, d.Email, d.Comment, now(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return "", oops.New(ErrUnknownPost, "no post %s", d.PostID)
		}
		return "", oops.New(err, "failed to insert comment")
	}
	return id, nil
}
