package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-watch/internal/github"
	"github.com/mattsolo1/grove-watch/internal/storage/interfaces"
	"github.com/sirupsen/logrus"
)

// prCacheKey is the durable key holding the whole PR status cache map.
const prCacheKey = "pr-status-cache"

// PRStatusTTL is how long a checked pull-request status is trusted.
const PRStatusTTL = 5 * time.Minute

// PRChecker looks up the live state of a pull request.
type PRChecker interface {
	PullRequestState(ctx context.Context, owner, repo string, number int, token string) (string, error)
}

type prStatusEntry struct {
	IsClosed    bool      `json:"is_closed"`
	LastChecked time.Time `json:"last_checked"`
}

// PRStatusCache caches pull-request closed/open status per URL with a TTL.
// It is safe for concurrent use; CheckStatus runs on fan-out goroutines
// during a reconcile pass.
type PRStatusCache struct {
	mu      sync.Mutex
	entries map[string]prStatusEntry
	store   interfaces.KeyValueStorer
	checker PRChecker
	ttl     time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

// NewPRStatusCache loads the persisted cache, dropping entries whose age
// already exceeds the TTL so the map cannot grow without bound across
// restarts.
func NewPRStatusCache(store interfaces.KeyValueStorer, checker PRChecker) *PRStatusCache {
	c := &PRStatusCache{
		entries: make(map[string]prStatusEntry),
		store:   store,
		checker: checker,
		ttl:     PRStatusTTL,
		now:     time.Now,
		log:     logging.NewLogger("watch.prcache"),
	}

	data, ok, err := store.Get(prCacheKey)
	if err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to load PR status cache")
		return c
	}
	if !ok {
		return c
	}

	var persisted map[string]prStatusEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Discarding unparsable PR status cache")
		return c
	}

	for url, entry := range persisted {
		if c.now().Sub(entry.LastChecked) < c.ttl {
			c.entries[url] = entry
		}
	}
	return c
}

// CheckStatus returns whether the pull request at url is closed, consulting
// the cache first and hitting the network only on a miss or stale entry.
// Any failure degrades to false (open) without touching the cache, so the
// next poll retries instead of trusting a bad result for a full TTL.
func (c *PRStatusCache) CheckStatus(ctx context.Context, url, token string) bool {
	c.mu.Lock()
	if entry, ok := c.entries[url]; ok && c.now().Sub(entry.LastChecked) < c.ttl {
		c.mu.Unlock()
		return entry.IsClosed
	}
	c.mu.Unlock()

	owner, repo, number, err := github.ParsePullURL(url)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Warn("Cannot determine PR status")
		return false
	}

	prState, err := c.checker.PullRequestState(ctx, owner, repo, number, token)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Warn("PR status check failed")
		return false
	}

	isClosed := prState == "closed" || prState == "merged"

	c.mu.Lock()
	c.entries[url] = prStatusEntry{IsClosed: isClosed, LastChecked: c.now()}
	err = c.persistLocked()
	c.mu.Unlock()

	if err != nil {
		// In-memory state stays authoritative; the next successful check
		// rewrites the whole map.
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to persist PR status cache")
	}
	return isClosed
}

// Entry returns the cached status for url, if present.
func (c *PRStatusCache) Entry(url string) (isClosed bool, lastChecked time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[url]
	return entry.IsClosed, entry.LastChecked, ok
}

// Reset drops every cached entry and the durable copy.
func (c *PRStatusCache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]prStatusEntry)
	return c.store.Delete(prCacheKey)
}

func (c *PRStatusCache) persistLocked() error {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}
	return c.store.Set(prCacheKey, data)
}
