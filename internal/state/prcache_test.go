package state

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

const testPRURL = "https://github.com/acme/widgets/pull/1"

func TestCheckStatusCachesWithinTTL(t *testing.T) {
	store := newMemStore()
	checker := &fakeChecker{state: map[string]string{"acme/widgets#1": "closed"}}
	cache := NewPRStatusCache(store, checker)

	base := time.Now()
	cache.now = func() time.Time { return base }

	if closed := cache.CheckStatus(context.Background(), testPRURL, ""); !closed {
		t.Fatal("Expected closed on first check")
	}
	if checker.callCount() != 1 {
		t.Fatalf("Expected 1 network call, got %d", checker.callCount())
	}

	// Just inside the TTL: served from cache.
	cache.now = func() time.Time { return base.Add(PRStatusTTL - time.Second) }
	if closed := cache.CheckStatus(context.Background(), testPRURL, ""); !closed {
		t.Error("Expected cached closed status")
	}
	if checker.callCount() != 1 {
		t.Errorf("Expected no additional network call inside TTL, got %d", checker.callCount())
	}
}

func TestCheckStatusTTLBoundaryCountsAsExpired(t *testing.T) {
	store := newMemStore()
	checker := &fakeChecker{state: map[string]string{"acme/widgets#1": "closed"}}
	cache := NewPRStatusCache(store, checker)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.CheckStatus(context.Background(), testPRURL, "")

	// Exactly at the TTL the entry must no longer be trusted.
	cache.now = func() time.Time { return base.Add(PRStatusTTL) }
	cache.CheckStatus(context.Background(), testPRURL, "")

	if checker.callCount() != 2 {
		t.Errorf("Expected age == TTL to trigger a re-check, got %d calls", checker.callCount())
	}
}

func TestCheckStatusFailsOpenWithoutCaching(t *testing.T) {
	store := newMemStore()
	checker := &fakeChecker{state: map[string]string{}, err: fmt.Errorf("connection refused")}
	cache := NewPRStatusCache(store, checker)

	if closed := cache.CheckStatus(context.Background(), testPRURL, ""); closed {
		t.Error("A failed check must report open")
	}
	if _, _, ok := cache.Entry(testPRURL); ok {
		t.Error("A failed check must not be cached")
	}

	// The very next check retries instead of trusting a remembered failure.
	checker.setErr(nil)
	checker.setState("acme/widgets#1", "closed")
	if closed := cache.CheckStatus(context.Background(), testPRURL, ""); !closed {
		t.Error("Expected retry to succeed on the next check")
	}
}

func TestCheckStatusUnparsableURLFailsOpen(t *testing.T) {
	store := newMemStore()
	checker := &fakeChecker{state: map[string]string{}}
	cache := NewPRStatusCache(store, checker)

	if closed := cache.CheckStatus(context.Background(), "https://example.com/not-a-pr", ""); closed {
		t.Error("Unparsable URL must report open")
	}
	if checker.callCount() != 0 {
		t.Error("Unparsable URL must not hit the network")
	}
}

func TestCheckStatusPersistsCache(t *testing.T) {
	store := newMemStore()
	checker := &fakeChecker{state: map[string]string{"acme/widgets#1": "closed"}}
	cache := NewPRStatusCache(store, checker)

	cache.CheckStatus(context.Background(), testPRURL, "")

	data, ok, err := store.Get(prCacheKey)
	if err != nil || !ok {
		t.Fatalf("Expected persisted cache, ok=%v err=%v", ok, err)
	}
	var persisted map[string]prStatusEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Persisted cache unparsable: %v", err)
	}
	if entry, ok := persisted[testPRURL]; !ok || !entry.IsClosed {
		t.Errorf("Persisted entry missing or wrong: %+v", persisted)
	}
}

func TestStaleEntriesDroppedAtStartup(t *testing.T) {
	store := newMemStore()

	stale := map[string]prStatusEntry{
		testPRURL: {IsClosed: true, LastChecked: time.Now().Add(-2 * PRStatusTTL)},
		"https://github.com/acme/widgets/pull/2": {IsClosed: false, LastChecked: time.Now()},
	}
	data, _ := json.Marshal(stale)
	if err := store.Set(prCacheKey, data); err != nil {
		t.Fatal(err)
	}

	checker := &fakeChecker{state: map[string]string{}}
	cache := NewPRStatusCache(store, checker)

	if _, _, ok := cache.Entry(testPRURL); ok {
		t.Error("Expected stale entry to be dropped at startup")
	}
	if _, _, ok := cache.Entry("https://github.com/acme/widgets/pull/2"); !ok {
		t.Error("Expected fresh entry to survive startup")
	}
}
