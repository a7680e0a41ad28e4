package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillpress/quill/src/migration/types"
)

func init() {
	registerMigration(CreateContentTables{})
}

type CreateContentTables struct{}

func (m CreateContentTables) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2021, 3, 25, 12, 0, 0, 0, time.UTC))
}

func (m CreateContentTables) Name() string {
	return "CreateContentTables"
}

func (m CreateContentTables) Description() string {
	return "Create the author, post, and comment tables for self-hosted content"
}

func (m CreateContentTables) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE author (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			image_ref TEXT
		);

		CREATE TABLE post (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			author_id TEXT REFERENCES author (id) ON DELETE SET NULL,
			main_image_ref TEXT,
			body JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE comment (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES post (id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			comment TEXT NOT NULL,
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		`,
	)
	return err
}

func (m CreateContentTables) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE comment;
		DROP TABLE post;
		DROP TABLE author;
		`,
	)
	return err
}
