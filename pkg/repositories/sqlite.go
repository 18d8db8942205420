package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and applies the migrations.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	scripts, err := migrations("sqlite")
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, migration := range scripts {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) LoadToken(ctx context.Context, key string) (string, error) {
	q := `
	SELECT value FROM tokens WHERE key = ?;
	`
	var token string
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&token); err != nil {
		if err == sql.ErrNoRows {
			return "", &ErrNotFound{Key: key}
		}
		return "", fmt.Errorf("failed to scan token: %v", err)
	}

	return token, nil
}

func (r *SQLiteRepository) SaveToken(ctx context.Context, key string, token string) error {
	q := `
	INSERT OR REPLACE INTO tokens (key, value, updated_at)
	VALUES (?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, key, token, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save token: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) DeleteToken(ctx context.Context, key string) error {
	q := `
	DELETE FROM tokens WHERE key = ?;
	`
	if _, err := r.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("failed to delete token: %v", err)
	}

	return nil
}
