package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quillpress/quill/src/db"
	"github.com/quillpress/quill/src/oops"
	"github.com/spf13/cobra"
)

func seedCommand() *cobra.Command {
	var numPosts int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate the Postgres content store and fill it with sample posts",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn, err := db.NewConn(ctx)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			defer conn.Close(ctx)

			if err := Migrate(ctx, conn, LatestVersion()); err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			if err := SampleSeed(ctx, conn, numPosts); err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Done!")
		},
	}
	cmd.Flags().IntVar(&numPosts, "posts", 8, "Number of sample posts to create")
	return cmd
}

type seedAuthor struct {
	ID       string
	Name     string
	ImageRef string
}

type seedPost struct {
	ID           string
	Slug         string
	Title        string
	Description  string
	AuthorID     string
	MainImageRef string
	Body         json.RawMessage
	CreatedAt    time.Time
}

type seedComment struct {
	ID        string
	PostID    string
	Name      string
	Email     string
	Comment   string
	Approved  bool
	CreatedAt time.Time
}

type sampleData struct {
	Authors  []seedAuthor
	Posts    []seedPost
	Comments []seedComment
}

// SampleSeed replaces all content with lorem ipsum posts for local dev.
func SampleSeed(ctx context.Context, conn db.ConnOrTx, numPosts int) error {
	data := generateSampleData(rand.New(rand.NewSource(time.Now().UnixNano())), numPosts, time.Now())

	return db.WithTx(ctx, conn, func(tx pgx.Tx) error {
		fmt.Println("Clearing existing content...")
		if _, err := tx.Exec(ctx, `TRUNCATE comment, post, author`); err != nil {
			return oops.New(err, "failed to clear content tables")
		}

		fmt.Printf("Creating %d authors...\n", len(data.Authors))
		var authors db.QueryBuilder
		authors.Add(`INSERT INTO author (id, name, image_ref) VALUES`)
		authors.AddValues(authorRows(data.Authors))
		if _, err := tx.Exec(ctx, authors.String(), authors.Args()...); err != nil {
			return oops.New(err, "failed to create authors")
		}

		if len(data.Posts) == 0 {
			return nil
		}

		fmt.Printf("Creating %d posts...\n", len(data.Posts))
		var posts db.QueryBuilder
		posts.Add(`INSERT INTO post (id, slug, title, description, author_id, main_image_ref, body, created_at) VALUES`)
		posts.AddValues(postRows(data.Posts))
		if _, err := tx.Exec(ctx, posts.String(), posts.Args()...); err != nil {
			return oops.New(err, "failed to create posts")
		}

		if len(data.Comments) == 0 {
			return nil
		}

		fmt.Printf("Creating %d comments...\n", len(data.Comments))
		var comments db.QueryBuilder
		comments.Add(`INSERT INTO comment (id, post_id, name, email, comment, approved, created_at) VALUES`)
		comments.AddValues(commentRows(data.Comments))
		if _, err := tx.Exec(ctx, comments.String(), comments.Args()...); err != nil {
			return oops.New(err, "failed to create comments")
		}
		return nil
	})
}

func generateSampleData(rng *rand.Rand, numPosts int, now time.Time) sampleData {
	var data sampleData
	for i := 0; i < 3; i++ {
		data.Authors = append(data.Authors, seedAuthor{
			ID:       uuid.NewString(),
			Name:     randomName(),
			ImageRef: fmt.Sprintf("seed/authors/%d.png", i+1),
		})
	}

	for i := 0; i < numPosts; i++ {
		title := titleCase(strings.TrimSuffix(lorem.Sentence(3, 7), "."))
		post := seedPost{
			ID:           uuid.NewString(),
			Slug:         fmt.Sprintf("%s-%d", slugify(title), i+1),
			Title:        title,
			Description:  lorem.Sentence(8, 16),
			AuthorID:     data.Authors[rng.Intn(len(data.Authors))].ID,
			MainImageRef: fmt.Sprintf("seed/posts/%d.jpg", i+1),
			Body:         sampleBody(rng),
			CreatedAt:    now.Add(-time.Duration(numPosts-i) * 24 * time.Hour),
		}
		data.Posts = append(data.Posts, post)

		for c := rng.Intn(4); c > 0; c-- {
			data.Comments = append(data.Comments, seedComment{
				ID:        uuid.NewString(),
				PostID:    post.ID,
				Name:      randomName(),
				Email:     lorem.Email(),
				Comment:   lorem.Paragraph(1, 3),
				Approved:  rng.Intn(3) > 0,
				CreatedAt: post.CreatedAt.Add(time.Duration(c) * time.Hour),
			})
		}
	}
	return data
}

func authorRows(authors []seedAuthor) [][]any {
	rows := make([][]any, len(authors))
	for i, a := range authors {
		rows[i] = []any{a.ID, a.Name, a.ImageRef}
	}
	return rows
}

func postRows(posts []seedPost) [][]any {
	rows := make([][]any, len(posts))
	for i, p := range posts {
		rows[i] = []any{p.ID, p.Slug, p.Title, p.Description, p.AuthorID, p.MainImageRef, string(p.Body), p.CreatedAt}
	}
	return rows
}

func commentRows(comments []seedComment) [][]any {
	rows := make([][]any, len(comments))
	for i, c := range comments {
		rows[i] = []any{c.ID, c.PostID, c.Name, c.Email, c.Comment, c.Approved, c.CreatedAt}
	}
	return rows
}

// sampleBody produces a Portable Text document with one of most node types.
func sampleBody(rng *rand.Rand) json.RawMessage {
	key := 0
	nextKey := func() string {
		key++
		return fmt.Sprintf("k%d", key)
	}
	span := func(text string, marks ...string) map[string]any {
		if marks == nil {
			marks = []string{}
		}
		return map[string]any{"_type": "span", "_key": nextKey(), "text": text, "marks": marks}
	}
	block := func(style string, children ...map[string]any) map[string]any {
		return map[string]any{"_type": "block", "_key": nextKey(), "style": style, "markDefs": []any{}, "children": children}
	}

	var doc []map[string]any
	doc = append(doc, block("normal", span(lorem.Paragraph(2, 4))))
	doc = append(doc, block("h2", span(titleCase(strings.TrimSuffix(lorem.Sentence(2, 5), ".")))))

	linkKey := nextKey()
	linked := block("normal",
		span(lorem.Sentence(4, 10)+" "),
		span(lorem.Word(4, 9), "strong"),
		span(" "+lorem.Sentence(2, 6)+" "),
		span("more here", linkKey),
	)
	linked["markDefs"] = []any{map[string]any{"_type": "link", "_key": linkKey, "href": "https://" + lorem.Host()}}
	doc = append(doc, linked)

	for i := 0; i < 2+rng.Intn(3); i++ {
		item := block("normal", span(lorem.Sentence(3, 8)))
		item["listItem"] = "bullet"
		item["level"] = 1
		doc = append(doc, item)
	}

	doc = append(doc, block("blockquote", span(lorem.Sentence(6, 12), "em")))
	doc = append(doc, map[string]any{
		"_type":    "code",
		"_key":     nextKey(),
		"language": "go",
		"filename": "main.go",
		"code":     "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"" + lorem.Word(3, 8) + "\")\n}\n",
	})
	doc = append(doc, block("normal", span(lorem.Paragraph(1, 3))))

	body, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return body
}

func randomName() string {
	return titleCase(lorem.Word(3, 8)) + " " + titleCase(lorem.Word(4, 10))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
