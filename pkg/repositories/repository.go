package repositories

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
)

// DefaultTokenKey is the key the session token is stored under.
const DefaultTokenKey = "session_token"

// Repository persists string values by key. The client only stores the
// session token in it.
type Repository interface {
	Close(ctx context.Context) error
	// LoadToken returns the value stored under key or ErrNotFound.
	LoadToken(ctx context.Context, key string) (string, error)
	// SaveToken stores token under key, replacing any previous value.
	SaveToken(ctx context.Context, key string, token string) error
	// DeleteToken removes key. Deleting a missing key is not an error.
	DeleteToken(ctx context.Context, key string) error
}

//go:embed migrations
var migrationsFS embed.FS

// migrations returns the migration scripts of dialect in lexical order.
func migrations(dialect string) ([]string, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	scripts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		migrationPath := path.Join(dir, entry.Name())
		migration, err := fs.ReadFile(migrationsFS, migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}
		scripts = append(scripts, string(migration))
	}
	return scripts, nil
}

// NewRepositoryFromURL opens the repository described by connStr:
// memory://, sqlite://<path> or postgresql://...
func NewRepositoryFromURL(ctx context.Context, connStr string) (Repository, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return NewSQLiteRepository(ctx, u.Host+u.Path)
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, u.String())
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
