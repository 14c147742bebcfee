package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serialises writes to avoid SQLITE_BUSY
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withBusyTimeout(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// withBusyTimeout sets the driver's busy timeout in the DSN so it applies to
// every pooled connection, not only the one that ran the schema.
func withBusyTimeout(dsn string) string {
	// "_timeout=" also matches "_busy_timeout=".
	if strings.Contains(dsn, "_timeout=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS kv (
        namespace TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        updated_at DATETIME NOT NULL,
        PRIMARY KEY (namespace, key)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Scoped returns a TokenStore view restricted to namespace.
func (s *SQLiteStore) Scoped(namespace string) TokenStore {
	return &sqliteScope{store: s, namespace: namespace}
}

func (s *SQLiteStore) get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) set(ctx context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore) delete(ctx context.Context, namespace string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	args := make([]any, 0, len(keys)+1)
	args = append(args, namespace)
	for _, k := range keys {
		args = append(args, k)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE namespace = ? AND key IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to delete keys in %s: %w", namespace, err)
	}
	return nil
}

type sqliteScope struct {
	store     *SQLiteStore
	namespace string
}

func (c *sqliteScope) Get(ctx context.Context, key string) (string, bool, error) {
	return c.store.get(ctx, c.namespace, key)
}

func (c *sqliteScope) Set(ctx context.Context, key, value string) error {
	return c.store.set(ctx, c.namespace, key, value)
}

func (c *sqliteScope) Delete(ctx context.Context, keys ...string) error {
	return c.store.delete(ctx, c.namespace, keys)
}
