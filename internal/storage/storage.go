package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
)

// Storage errors.
var (
	// ErrKeyNotFound indicates the (namespace, key) pair has no entry.
	ErrKeyNotFound = errors.New("storage: key not found")
)

// queryTimeout bounds individual store operations. Callers hold no
// context; writes are small local SQLite statements.
const queryTimeout = 5 * time.Second

// Store is a namespaced JSON document store over SQLite. It satisfies
// the registry package's Store interface.
type Store struct {
	db *database.DB
}

// New creates a store over an opened database. The storage_entries
// schema must already be migrated.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Put marshals value to JSON and upserts it under (namespace, key).
func (s *Store) Put(namespace, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshalling %s/%s: %w", namespace, key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO storage_entries (namespace, key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		namespace, key, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage: writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get unmarshals the entry under (namespace, key) into into. Returns
// ErrKeyNotFound when no entry exists.
func (s *Store) Get(namespace, key string, into any) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM storage_entries WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s/%s", ErrKeyNotFound, namespace, key)
		}
		return fmt.Errorf("storage: reading %s/%s: %w", namespace, key, err)
	}

	if err := json.Unmarshal([]byte(payload), into); err != nil {
		return fmt.Errorf("storage: unmarshalling %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes the entry under (namespace, key). Deleting a missing
// entry is not an error.
func (s *Store) Delete(namespace, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM storage_entries WHERE namespace = ? AND key = ?",
		namespace, key,
	)
	if err != nil {
		return fmt.Errorf("storage: deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys returns all keys in the namespace, sorted.
func (s *Store) Keys(namespace string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := s.db.DB.QueryContext(ctx,
		"SELECT key FROM storage_entries WHERE namespace = ? ORDER BY key",
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: listing %s: %w", namespace, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("storage: scanning key in %s: %w", namespace, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterating %s: %w", namespace, err)
	}
	return keys, nil
}

// All decodes every entry in the namespace, keyed by key. newFn
// allocates the decode target for each entry.
func (s *Store) All(namespace string, newFn func() any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := s.db.DB.QueryContext(ctx,
		"SELECT key, payload FROM storage_entries WHERE namespace = ? ORDER BY key",
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: listing %s: %w", namespace, err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("storage: scanning entry in %s: %w", namespace, err)
		}
		into := newFn()
		if err := json.Unmarshal([]byte(payload), into); err != nil {
			return nil, fmt.Errorf("storage: unmarshalling %s/%s: %w", namespace, key, err)
		}
		out[key] = into
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterating %s: %w", namespace, err)
	}
	return out, nil
}
