package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillpress/quill/src/migration/types"
)

func init() {
	registerMigration(AddApprovedCommentIndex{})
}

type AddApprovedCommentIndex struct{}

func (m AddApprovedCommentIndex) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2021, 3, 27, 9, 0, 0, 0, time.UTC))
}

func (m AddApprovedCommentIndex) Name() string {
	return "AddApprovedCommentIndex"
}

func (m AddApprovedCommentIndex) Description() string {
	return "Index approved comments by post for the post page"
}

func (m AddApprovedCommentIndex) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE INDEX comment_approved_by_post ON comment (post_id, created_at) WHERE approved;
		CREATE INDEX post_created_at ON post (created_at DESC);
		`,
	)
	return err
}

func (m AddApprovedCommentIndex) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP INDEX post_created_at;
		DROP INDEX comment_approved_by_post;
		`,
	)
	return err
}
