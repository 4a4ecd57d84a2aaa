package branches

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-watch/internal/config"
	"github.com/mattsolo1/grove-watch/internal/git"
	"github.com/mattsolo1/grove-watch/internal/state"
	"github.com/mattsolo1/grove-watch/internal/storage/interfaces"
	"github.com/sirupsen/logrus"
)

const (
	// CacheTTL is how long a cached branch listing is trusted.
	CacheTTL = 10 * time.Minute

	// refreshThreshold is the age past which an unchanged listing still
	// gets rewritten, purely to keep the TTL clock accurate.
	refreshThreshold = 3 * time.Minute
)

// Entry is the cached branch metadata for one source repository.
type Entry struct {
	Branches       []string  `json:"branches"`
	DefaultBranch  string    `json:"default_branch"`
	CurrentBranch  string    `json:"current_branch"`
	RemoteBranches []string  `json:"remote_branches"`
	FetchedAt      time.Time `json:"fetched_at"`
}

func (e *Entry) contentEqual(other *Entry) bool {
	if e.DefaultBranch != other.DefaultBranch || e.CurrentBranch != other.CurrentBranch {
		return false
	}
	return equalStrings(e.Branches, other.Branches) && equalStrings(e.RemoteBranches, other.RemoteBranches)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BranchLister fetches the remote branch list for a source repository.
type BranchLister interface {
	ListBranches(ctx context.Context, sourceID string) (branches []string, defaultBranch string, err error)
}

// LocalGit is the local version-control collaborator.
type LocalGit interface {
	CurrentBranch() string
	RemoteOwnerRepo() (owner, repo string, ok bool)
}

// WorkdirGit reads local branch information from a working directory.
type WorkdirGit struct {
	Dir        string
	RemoteName string
}

func (w *WorkdirGit) CurrentBranch() string {
	return git.CurrentBranch(w.Dir)
}

func (w *WorkdirGit) RemoteOwnerRepo() (string, string, bool) {
	url := git.RemoteURL(w.Dir, w.RemoteName)
	if url == "" {
		return "", "", false
	}
	return git.OwnerRepo(url)
}

// Cache avoids repeated remote and local VCS queries for branch listings,
// keyed per source, with write-skipping for unchanged content.
type Cache struct {
	store  interfaces.KeyValueStorer
	lister BranchLister
	local  LocalGit
	cfg    config.BranchesConfig
	ttl    time.Duration
	now    func() time.Time
	log    *logrus.Entry
}

// NewCache builds a branch metadata cache.
func NewCache(store interfaces.KeyValueStorer, lister BranchLister, local LocalGit, cfg config.BranchesConfig) *Cache {
	return &Cache{
		store:  store,
		lister: lister,
		local:  local,
		cfg:    cfg,
		ttl:    CacheTTL,
		now:    time.Now,
		log:    logging.NewLogger("watch.branches"),
	}
}

func cacheKey(sourceID string) string {
	return "branches/" + sourceID
}

// GetBranches returns branch metadata for a source, served from cache when
// fresh unless forceRefresh is set.
func (c *Cache) GetBranches(ctx context.Context, source state.SourceRef, forceRefresh bool) (*Entry, error) {
	cached := c.load(source.ID)
	if cached != nil && !forceRefresh && c.now().Sub(cached.FetchedAt) < c.ttl {
		return cached, nil
	}

	fresh, err := c.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	c.persist(source.ID, cached, fresh)
	return fresh, nil
}

func (c *Cache) load(sourceID string) *Entry {
	data, ok, err := c.store.Get(cacheKey(sourceID))
	if err != nil || !ok {
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	return &entry
}

func (c *Cache) fetch(ctx context.Context, source state.SourceRef) (*Entry, error) {
	remoteBranches, sourceDefault, err := c.lister.ListBranches(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch branches for %s: %w", source.ID, err)
	}
	if sourceDefault == "" {
		sourceDefault = source.DefaultBranch
	}

	currentBranch := c.local.CurrentBranch()

	branches := append([]string(nil), remoteBranches...)
	if currentBranch != "" && !contains(remoteBranches, currentBranch) {
		// The caller needs the local branch as a selectable option even
		// though the remote does not know it yet.
		c.log.WithFields(logrus.Fields{
			"branch": currentBranch,
			"source": source.ID,
		}).Warn("Current local branch not found on remote; offering it anyway")
		branches = append([]string{currentBranch}, branches...)
	}

	entry := &Entry{
		Branches:       branches,
		DefaultBranch:  c.resolveDefault(source, branches, currentBranch, sourceDefault),
		CurrentBranch:  currentBranch,
		RemoteBranches: remoteBranches,
		FetchedAt:      c.now(),
	}
	return entry, nil
}

// resolveDefault applies the configured default-branch policy.
func (c *Cache) resolveDefault(source state.SourceRef, branches []string, currentBranch, sourceDefault string) string {
	switch c.cfg.DefaultBranch {
	case "current":
		// Only trust the local branch when the local checkout actually
		// points at the selected source repository.
		if currentBranch != "" {
			owner, repo, ok := c.local.RemoteOwnerRepo()
			if ok && strings.EqualFold(owner, source.Owner) && strings.EqualFold(repo, source.Repo) {
				return currentBranch
			}
		}
		return sourceDefault
	case "main":
		if contains(branches, "main") {
			return "main"
		}
		return sourceDefault
	default:
		return sourceDefault
	}
}

// persist writes the fresh entry, skipping the write entirely when the
// content is unchanged and the stored copy is still young. Unchanged but
// aging content is rewritten only to refresh the timestamp.
func (c *Cache) persist(sourceID string, cached, fresh *Entry) {
	if cached != nil && fresh.contentEqual(cached) && c.now().Sub(cached.FetchedAt) < refreshThreshold {
		return
	}

	data, err := json.Marshal(fresh)
	if err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to encode branch cache entry")
		return
	}
	if err := c.store.Set(cacheKey(sourceID), data); err != nil {
		c.log.WithFields(logrus.Fields{
			"source": sourceID,
			"error":  err.Error(),
		}).Warn("Failed to persist branch cache entry")
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
