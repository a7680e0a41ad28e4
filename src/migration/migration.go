package migration

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillpress/quill/src/db"
	"github.com/quillpress/quill/src/migration/migrations"
	"github.com/quillpress/quill/src/migration/types"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/website"
	"github.com/spf13/cobra"
)

var listMigrations bool

func init() {
	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations for the Postgres content store",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			if listMigrations {
				ListMigrations(ctx)
				return
			}

			targetVersion := time.Time{}
			if len(args) > 0 {
				var err error
				targetVersion, err = time.Parse(time.RFC3339, args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v", err)
					os.Exit(1)
				}
			}

			conn, err := db.NewConn(ctx)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			defer conn.Close(ctx)

			if err := Migrate(ctx, conn, types.MigrationVersion(targetVersion)); err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			MakeMigration(name, description)
		},
	}

	website.WebsiteCommand.AddCommand(migrateCommand)
	website.WebsiteCommand.AddCommand(makeMigrationCommand)
	website.WebsiteCommand.AddCommand(seedCommand())
}

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func getCurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	currentVersion, err := db.QueryOneScalar[time.Time](ctx, conn, "SELECT version FROM quill_migration")
	if err != nil {
		return types.MigrationVersion{}, err
	}

	return types.MigrationVersion(currentVersion.UTC()), nil
}

func ListMigrations(ctx context.Context) {
	var currentVersion types.MigrationVersion
	if conn, err := db.NewConn(ctx); err == nil {
		currentVersion, _ = getCurrentVersion(ctx, conn)
		conn.Close(ctx)
	}

	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Printf("%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
}

// Migrate rolls the database forward or back to targetVersion, one
// transaction per migration. A zero targetVersion means the latest.
func Migrate(ctx context.Context, conn *pgx.Conn, targetVersion types.MigrationVersion) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quill_migration (
			version		TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return oops.New(err, "failed to create migration table")
	}

	// ensure there is a row
	numRows, err := db.QueryOneScalar[int](ctx, conn, "SELECT COUNT(*) FROM quill_migration")
	if err != nil {
		return oops.New(err, "failed to count migration rows")
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO quill_migration (version) VALUES ($1)", time.Time{})
		if err != nil {
			return oops.New(err, "failed to insert initial migration row")
		}
	}

	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		return oops.New(err, "failed to get current version")
	}
	if currentVersion.IsZero() {
		fmt.Println("This is the first time you have run database migrations.")
	} else {
		fmt.Printf("Current version: %s\n", currentVersion.String())
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex, targetIndex, err := migrationRange(allVersions, currentVersion, targetVersion)
	if err != nil {
		return err
	}

	if currentIndex < targetIndex {
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			fmt.Printf("Applying migration %v (%v)\n", version, migration.Name())
			if err := applyInTx(ctx, conn, migration.Up, version); err != nil {
				return oops.New(err, "migration %v failed", version)
			}
		}
	} else if currentIndex > targetIndex {
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}

			fmt.Printf("Rolling back migration %v\n", version)
			migration := migrations.All[version]
			if err := applyInTx(ctx, conn, migration.Down, previousVersion); err != nil {
				return oops.New(err, "rollback of migration %v failed", version)
			}
		}
	} else {
		fmt.Println("Already migrated; nothing to do.")
	}
	return nil
}

// migrationRange finds where the database is and where it should be. An
// unmigrated database has index -1.
func migrationRange(allVersions []types.MigrationVersion, current, target types.MigrationVersion) (int, int, error) {
	currentIndex := -1
	targetIndex := -1
	for i, version := range allVersions {
		if current.Equal(version) {
			currentIndex = i
		}
		if target.Equal(version) {
			targetIndex = i
		}
	}

	if targetIndex < 0 {
		return 0, 0, oops.New(nil, "could not find migration with version %v", target)
	}
	if currentIndex < 0 && !current.IsZero() {
		return 0, 0, oops.New(nil, "database is at unknown version %v", current)
	}
	return currentIndex, targetIndex, nil
}

func applyInTx(ctx context.Context, conn *pgx.Conn, step func(context.Context, pgx.Tx) error, newVersion types.MigrationVersion) error {
	return db.WithTx(ctx, conn, func(tx pgx.Tx) error {
		if err := step(ctx, tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "UPDATE quill_migration SET version = $1", time.Time(newVersion))
		if err != nil {
			return oops.New(err, "failed to update version in migrations table")
		}
		return nil
	})
}

//go:embed migrationTemplate.txt
var migrationTemplate string

func MakeMigration(name, description string) {
	result := renderMigrationTemplate(name, description, time.Now().UTC())

	safeVersion := strings.ReplaceAll(types.MigrationVersion(time.Now().UTC()).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join("src", "migration", "migrations", filename)

	err := os.WriteFile(path, []byte(result), 0644)
	if err != nil {
		panic(fmt.Errorf("failed to write migration file: %w", err))
	}

	fmt.Println("Successfully created migration file:")
	fmt.Println(path)
}

func renderMigrationTemplate(name, description string, now time.Time) string {
	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	return strings.ReplaceAll(result, "%DATE%", nowConstructor)
}
