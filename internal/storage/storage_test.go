package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	_ "github.com/hearth-home/hearth-core/migrations"
)

type document struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "hearth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return New(db)
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)

	want := document{Name: "kitchen", Value: 42}
	if err := s.Put("managed_items", "Kitchen_Light", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var got document
	if err := s.Get("managed_items", "Kitchen_Light", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	// Upsert replaces.
	want.Value = 7
	if err := s.Put("managed_items", "Kitchen_Light", want); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	if err := s.Get("managed_items", "Kitchen_Light", &got); err != nil {
		t.Fatalf("Get() after overwrite error = %v", err)
	}
	if got.Value != 7 {
		t.Errorf("value after overwrite = %d, want 7", got.Value)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	var got document
	err := s.Get("managed_items", "Ghost", &got)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("managed_items", "Doomed", document{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("managed_items", "Doomed"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var got document
	if err := s.Get("managed_items", "Doomed", &got); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrKeyNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete("managed_items", "Doomed"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestStore_Keys(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []string{"b", "a", "c"} {
		if err := s.Put("managed_items", key, document{Name: key}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Put("managed_things", "other", document{}); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Keys("managed_items")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Keys() = %v, want sorted [a b c]", keys)
	}

	empty, err := s.Keys("rules_disabled")
	if err != nil {
		t.Fatalf("Keys(empty namespace) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Keys(empty namespace) = %v", empty)
	}
}

func TestStore_All(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("managed_items", "a", document{Name: "a", Value: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("managed_items", "b", document{Name: "b", Value: 2}); err != nil {
		t.Fatal(err)
	}

	all, err := s.All("managed_items", func() any { return &document{} })
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("All() returned %d entries", len(all))
	}
	b, ok := all["b"].(*document)
	if !ok || b.Value != 2 {
		t.Errorf("All()[b] = %+v", all["b"])
	}
}

func TestStore_NamespaceIsolation(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("managed_items", "shared", document{Value: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("managed_things", "shared", document{Value: 2}); err != nil {
		t.Fatal(err)
	}

	var got document
	if err := s.Get("managed_things", "shared", &got); err != nil {
		t.Fatal(err)
	}
	if got.Value != 2 {
		t.Errorf("namespaces bleed: got %+v", got)
	}

	if err := s.Delete("managed_items", "shared"); err != nil {
		t.Fatal(err)
	}
	if err := s.Get("managed_things", "shared", &got); err != nil {
		t.Errorf("delete crossed namespaces: %v", err)
	}
}
