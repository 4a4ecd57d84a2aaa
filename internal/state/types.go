package state

// LifecycleState is the coarse session lifecycle derived from the remote
// service's raw state vocabulary.
type LifecycleState string

const (
	StateRunning   LifecycleState = "RUNNING"
	StateCompleted LifecycleState = "COMPLETED"
	StateFailed    LifecycleState = "FAILED"
	StateCancelled LifecycleState = "CANCELLED"
)

// Raw states that require operator attention.
const (
	RawAwaitingPlanApproval = "AWAITING_PLAN_APPROVAL"
	RawAwaitingUserFeedback = "AWAITING_USER_FEEDBACK"
)

// DeriveLifecycle collapses the remote raw-state vocabulary into the four
// coarse lifecycle states. Unknown raw states map to RUNNING so the session
// stays visible rather than being hidden on a vocabulary change upstream.
func DeriveLifecycle(rawState string) LifecycleState {
	switch rawState {
	case "COMPLETED":
		return StateCompleted
	case "FAILED":
		return StateFailed
	case "CANCELLED":
		return StateCancelled
	default:
		// QUEUED, PLANNING, AWAITING_PLAN_APPROVAL, AWAITING_USER_FEEDBACK,
		// IN_PROGRESS, PAUSED and anything new
		return StateRunning
	}
}

// SessionOutput is one artifact produced by a session, typically a pull
// request.
type SessionOutput struct {
	PullRequestURL string `json:"pull_request_url,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
}

// SourceRef identifies the repository a session was created from.
type SourceRef struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// RemoteSession is a session as reported by Grove Cloud. Read-only to this
// package.
type RemoteSession struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	State               LifecycleState  `json:"state"`
	RawState            string          `json:"raw_state"`
	Outputs             []SessionOutput `json:"outputs,omitempty"`
	Source              SourceRef       `json:"source"`
	RequirePlanApproval bool            `json:"require_plan_approval"`
}

// PullRequestURL returns the first pull-request output URL, or "".
func (s *RemoteSession) PullRequestURL() string {
	for _, out := range s.Outputs {
		if out.PullRequestURL != "" {
			return out.PullRequestURL
		}
	}
	return ""
}

// TrackedSessionState is the locally persisted record of the last observed
// state for one session.
type TrackedSessionState struct {
	ID       string          `json:"id"`
	State    LifecycleState  `json:"state"`
	RawState string          `json:"raw_state"`
	Outputs  []SessionOutput `json:"outputs,omitempty"`

	// Terminated is sticky: once true it never reverts to false.
	Terminated bool `json:"terminated"`
}

func (t *TrackedSessionState) equal(other *TrackedSessionState) bool {
	if t.ID != other.ID || t.State != other.State || t.RawState != other.RawState || t.Terminated != other.Terminated {
		return false
	}
	if len(t.Outputs) != len(other.Outputs) {
		return false
	}
	for i := range t.Outputs {
		if t.Outputs[i] != other.Outputs[i] {
			return false
		}
	}
	return true
}
