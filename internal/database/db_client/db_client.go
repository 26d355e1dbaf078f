package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(host, port, user, pass, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		user, pass, host, port, database,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetConnMaxIdleTime(time.Minute)
	return db, db.Ping()
}

// EnsureSchema creates the tables the service writes to. All statements
// are idempotent so boot can run them unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
		    code       TEXT PRIMARY KEY,
		    owner_id   TEXT NOT NULL,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS room_members (
		    room_code    TEXT NOT NULL REFERENCES rooms(code),
		    user_id      TEXT NOT NULL,
		    display_name TEXT NOT NULL DEFAULT '',
		    status       TEXT NOT NULL,
		    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		    PRIMARY KEY (room_code, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS canvases (
		    room_code  TEXT PRIMARY KEY,
		    ops        JSONB NOT NULL DEFAULT '[]',
		    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
