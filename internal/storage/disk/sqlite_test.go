package disk

import (
	"path/filepath"
	"testing"
)

func TestKeyValueRoundTrip(t *testing.T) {
	store, err := NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Set("session-state", []byte(`{"s1":{}}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get("session-state")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(value) != `{"s1":{}}` {
		t.Errorf("Unexpected value: ok=%v value=%s", ok, value)
	}

	// Overwrite
	if err := store.Set("session-state", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, _, _ = store.Get("session-state")
	if string(value) != `{}` {
		t.Errorf("Expected overwrite, got %s", value)
	}
}

func TestGetMissingKey(t *testing.T) {
	store, err := NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected missing key to report absent")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Set("key", []byte("value")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("key"); err != nil {
		t.Errorf("Deleting a missing key must not fail: %v", err)
	}

	if _, ok, _ := store.Get("key"); ok {
		t.Error("Expected key to be gone after delete")
	}
}

func TestKeysWithPrefix(t *testing.T) {
	store, err := NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	for _, key := range []string{"branches/src-1", "branches/src-2", "session-state"} {
		if err := store.Set(key, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.Keys("branches/")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 branch keys, got %v", keys)
	}

	all, err := store.Keys("")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 keys total, got %v", all)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLiteStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Set("pr-status-cache", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStoreWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	_, ok, err := reopened.Get("pr-status-cache")
	if err != nil || !ok {
		t.Errorf("Expected value to survive reopen: ok=%v err=%v", ok, err)
	}
}
