package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mattsolo1/grove-core/logging"
	"github.com/mattsolo1/grove-watch/internal/notify"
	"github.com/mattsolo1/grove-watch/internal/storage/interfaces"
	"github.com/sirupsen/logrus"
)

// sessionStateKey is the durable key holding the whole tracked-session map.
const sessionStateKey = "session-state"

// SessionSource fetches the current session list from Grove Cloud.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]RemoteSession, error)
	HasToken() bool
}

// TokenProvider resolves the token used for pull-request status checks.
// It is called once per reconcile pass and the result is shared across the
// parallel checks.
type TokenProvider func() (string, error)

// Tracker reconciles freshly fetched session snapshots against the last
// observed state, decides which transitions deserve a notification, and
// owns the tracked-session map, the PR status cache and the notified set.
//
// All three maps are mutated only from within a reconcile pass or an
// explicit user-initiated method; the polling scheduler guarantees at most
// one reconcile pass runs at a time, so the tracker itself carries no lock.
type Tracker struct {
	store      interfaces.KeyValueStorer
	source     SessionSource
	prCache    *PRStatusCache
	supervisor *notify.Supervisor
	tokenFn    TokenProvider
	log        *logrus.Entry

	sessions map[string]*TrackedSessionState
	notified map[string]struct{}

	// OnChange is invoked after a reconcile pass that altered tracked state.
	OnChange func()
}

// NewTracker loads persisted state and builds the reconciliation engine.
func NewTracker(store interfaces.KeyValueStorer, source SessionSource, checker PRChecker, supervisor *notify.Supervisor, tokenFn TokenProvider) *Tracker {
	t := &Tracker{
		store:      store,
		source:     source,
		prCache:    NewPRStatusCache(store, checker),
		supervisor: supervisor,
		tokenFn:    tokenFn,
		log:        logging.NewLogger("watch.tracker"),
		sessions:   make(map[string]*TrackedSessionState),
		notified:   make(map[string]struct{}),
	}

	data, ok, err := store.Get(sessionStateKey)
	if err != nil {
		t.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to load session state")
		return t
	}
	if !ok {
		return t
	}
	if err := json.Unmarshal(data, &t.sessions); err != nil {
		t.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Discarding unparsable session state")
		t.sessions = make(map[string]*TrackedSessionState)
	}
	return t
}

// PRCache exposes the PR status cache for inspection and explicit clearing.
func (t *Tracker) PRCache() *PRStatusCache {
	return t.prCache
}

// Refresh fetches the current session list and reconciles it. With a
// missing API token the pass short-circuits to an empty effective set
// rather than issuing unauthenticated requests. Background refreshes
// swallow errors after logging them; foreground refreshes surface them.
func (t *Tracker) Refresh(ctx context.Context, background bool) error {
	if !t.source.HasToken() {
		t.log.Warn("No API token configured; skipping session refresh")
		return nil
	}

	sessions, err := t.source.ListSessions(ctx)
	if err != nil {
		if background {
			t.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Background session fetch failed")
			return nil
		}
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}

	_, err = t.Reconcile(ctx, sessions)
	if err != nil {
		if background {
			t.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Background state persistence failed; retrying next pass")
			return nil
		}
		return err
	}
	return nil
}

// Reconcile diffs the complete current session list against the tracked
// state, updates it, fires notifications for newly entered notify-worthy
// states, and persists the whole map iff anything changed. Sessions absent
// from the input are kept: history must survive partial upstream fetches,
// so records are only removed by DeleteLocalRecord or ResetAll.
//
// The returned boolean reports whether any tracked field changed. A non-nil
// error means the in-memory state is updated but the durable write failed.
func (t *Tracker) Reconcile(ctx context.Context, current []RemoteSession) (bool, error) {
	prClosed := t.checkPullRequests(ctx, current)

	changed := false
	for i := range current {
		s := &current[i]
		prev := t.sessions[s.ID]

		next := &TrackedSessionState{
			ID:       s.ID,
			State:    s.State,
			RawState: s.RawState,
			Outputs:  append([]SessionOutput(nil), s.Outputs...),
		}

		if prev != nil && prev.Terminated {
			// Sticky: only display fields are refreshed for a terminated
			// session, termination is never re-derived.
			next.Terminated = true
		} else {
			next.Terminated = t.deriveTerminated(s, prClosed)
		}

		t.maybeNotify(s, prev)

		if next.Terminated {
			delete(t.notified, s.ID)
		}

		if prev == nil || !prev.equal(next) {
			t.sessions[s.ID] = next
			changed = true
		}
	}

	if !changed {
		return false, nil
	}

	saveErr := t.save()
	// In-memory state is authoritative even when the durable write failed,
	// so UI listeners still get refreshed.
	if t.OnChange != nil {
		t.OnChange()
	}
	if saveErr != nil {
		return true, fmt.Errorf("failed to persist session state: %w", saveErr)
	}
	return true, nil
}

// checkPullRequests fans out one concurrent PR status check per COMPLETED,
// PR-bearing, not-yet-terminated session and returns closed status keyed by
// session ID. The token is resolved once and shared across all checks.
func (t *Tracker) checkPullRequests(ctx context.Context, current []RemoteSession) map[string]bool {
	var pending []*RemoteSession
	for i := range current {
		s := &current[i]
		if s.State != StateCompleted || s.PullRequestURL() == "" {
			continue
		}
		if prev := t.sessions[s.ID]; prev != nil && prev.Terminated {
			continue
		}
		pending = append(pending, s)
	}
	if len(pending) == 0 {
		return nil
	}

	token, err := t.tokenFn()
	if err != nil {
		t.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to resolve PR check token; checking anonymously")
		token = ""
	}

	results := make(map[string]bool, len(pending))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, s := range pending {
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			closed := t.prCache.CheckStatus(ctx, url, token)
			mu.Lock()
			results[id] = closed
			mu.Unlock()
		}(s.ID, s.PullRequestURL())
	}
	wg.Wait()
	return results
}

// deriveTerminated computes termination for a not-previously-terminated
// session. A COMPLETED session without a pull request never terminates:
// with no externally observable closure signal it stays visible forever.
func (t *Tracker) deriveTerminated(s *RemoteSession, prClosed map[string]bool) bool {
	switch s.State {
	case StateFailed, StateCancelled:
		return true
	case StateCompleted:
		if s.PullRequestURL() != "" {
			return prClosed[s.ID]
		}
	}
	return false
}

// maybeNotify fires at most one notification per distinct entry into a
// notify-worthy raw state, plus a one-shot completion notification the
// first time a session turns COMPLETED with a pull request.
func (t *Tracker) maybeNotify(s *RemoteSession, prev *TrackedSessionState) {
	prevRaw := ""
	if prev != nil {
		prevRaw = prev.RawState
	}

	// Leaving a state re-arms the notification for a later re-entry.
	if s.RawState != prevRaw {
		delete(t.notified, s.ID)
	}

	if t.isNotifyWorthy(s, prev) {
		t.notifyOnce(s.ID, attentionNotification(s))
	}

	if s.State == StateCompleted && s.PullRequestURL() != "" && (prev == nil || prev.State != StateCompleted) {
		t.dispatch(s.ID, completionNotification(s))
	}
}

// isNotifyWorthy reports whether the session just entered a raw state that
// needs operator attention. Repeated polls inside the same state are not
// entries.
func (t *Tracker) isNotifyWorthy(s *RemoteSession, prev *TrackedSessionState) bool {
	if prev != nil && prev.Terminated {
		return false
	}
	if s.RawState != RawAwaitingPlanApproval && s.RawState != RawAwaitingUserFeedback {
		return false
	}
	return prev == nil || prev.RawState != s.RawState
}

// notifyOnce dispatches through the notified set so a state entry cannot
// notify twice even if it is observed by multiple passes.
func (t *Tracker) notifyOnce(sessionID string, n notify.Notification) {
	if _, done := t.notified[sessionID]; done {
		return
	}
	t.notified[sessionID] = struct{}{}
	t.dispatch(sessionID, n)
}

// dispatch hands the notification to the supervisor. Delivery happens in
// the background; failures are observed and logged there, never here, so a
// flaky notifier cannot abort or re-trigger a reconcile pass.
func (t *Tracker) dispatch(sessionID string, n notify.Notification) {
	t.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"title":      n.Title,
	}).Info("Dispatching notification")
	t.supervisor.Dispatch(n)
}

func attentionNotification(s *RemoteSession) notify.Notification {
	title := "Action Required"
	message := fmt.Sprintf("Session '%s' is waiting for your input.", s.Title)
	if s.RawState == RawAwaitingPlanApproval {
		title = "Plan Approval Needed"
		message = fmt.Sprintf("Session '%s' is waiting for plan approval.", s.Title)
	}
	return notify.Notification{
		Title:    title,
		Message:  message,
		Level:    "warning",
		Priority: "high",
		Tags:     []string{"session", "attention"},
	}
}

func completionNotification(s *RemoteSession) notify.Notification {
	return notify.Notification{
		Title:   "Session Completed",
		Message: fmt.Sprintf("Session '%s' finished; its pull request is ready for review.", s.Title),
		Level:   "info",
		Tags:    []string{"session", "completed"},
	}
}

// IsTerminated reports whether the session is locally flagged as no longer
// relevant to surface.
func (t *Tracker) IsTerminated(sessionID string) bool {
	s, ok := t.sessions[sessionID]
	return ok && s.Terminated
}

// PreviousState returns a copy of the last observed state for a session.
func (t *Tracker) PreviousState(sessionID string) (TrackedSessionState, bool) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return TrackedSessionState{}, false
	}
	copied := *s
	copied.Outputs = append([]SessionOutput(nil), s.Outputs...)
	return copied, true
}

// TrackedSessions returns a copy of every tracked session record.
func (t *Tracker) TrackedSessions() []TrackedSessionState {
	out := make([]TrackedSessionState, 0, len(t.sessions))
	for id := range t.sessions {
		s, _ := t.PreviousState(id)
		out = append(out, s)
	}
	return out
}

// DeleteLocalRecord forgets a session locally. The next successful fetch
// that still reports the session will re-track it from scratch.
func (t *Tracker) DeleteLocalRecord(sessionID string) error {
	if _, ok := t.sessions[sessionID]; !ok {
		return nil
	}
	delete(t.sessions, sessionID)
	delete(t.notified, sessionID)
	if err := t.save(); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// ResetAll drops all tracked sessions, the notified set and the PR status
// cache, durably.
func (t *Tracker) ResetAll() error {
	t.sessions = make(map[string]*TrackedSessionState)
	t.notified = make(map[string]struct{})
	if err := t.store.Delete(sessionStateKey); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	if err := t.prCache.Reset(); err != nil {
		return fmt.Errorf("failed to clear PR status cache: %w", err)
	}
	return nil
}

// save persists the whole session map in one write.
func (t *Tracker) save() error {
	data, err := json.Marshal(t.sessions)
	if err != nil {
		return err
	}
	return t.store.Set(sessionStateKey, data)
}
