package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var embedMigrations embed.FS

func configure(driver string) (dir string, err error) {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")

	switch driver {
	case "", "sqlite", "sqlite3":
		return "migrations/sqlite", goose.SetDialect("sqlite3")
	case "postgres", "pgx", "postgrespool":
		return "migrations/postgres", goose.SetDialect("postgres")
	default:
		return "", fmt.Errorf("unsupported driver for goose: %s", driver)
	}
}

func openDB(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" {
		dsn = "offercast.db"
	}
	// Map custom driver names to stdlib drivers.
	if driver == "postgres" || driver == "postgrespool" {
		driver = "pgx"
	}
	return sql.Open(driver, dsn)
}

func Up(ctx context.Context, driver, dsn string) error {
	dir, err := configure(driver)
	if err != nil {
		return err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.UpContext(ctx, db, dir)
}

func Down(ctx context.Context, driver, dsn string) error {
	dir, err := configure(driver)
	if err != nil {
		return err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.DownContext(ctx, db, dir)
}

func Status(ctx context.Context, driver, dsn string) error {
	dir, err := configure(driver)
	if err != nil {
		return err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.Status(db, dir)
}
