package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to connStr and applies the migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	if err := conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	scripts, err := migrations("postgres")
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	for _, migration := range scripts {
		if _, err := conn.Exec(ctx, migration); err != nil {
			conn.Close(ctx)
			return nil, fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) LoadToken(ctx context.Context, key string) (string, error) {
	q := `
	SELECT value FROM tokens WHERE key = $1;
	`
	var token string
	if err := r.conn.QueryRow(ctx, q, key).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &ErrNotFound{Key: key}
		}
		return "", fmt.Errorf("failed to scan token: %v", err)
	}

	return token, nil
}

func (r *PostgresRepository) SaveToken(ctx context.Context, key string, token string) error {
	q := `
	INSERT INTO tokens (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now();
	`
	if _, err := r.conn.Exec(ctx, q, key, token); err != nil {
		return fmt.Errorf("failed to save token: %v", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteToken(ctx context.Context, key string) error {
	q := `
	DELETE FROM tokens WHERE key = $1;
	`
	if _, err := r.conn.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("failed to delete token: %v", err)
	}

	return nil
}
