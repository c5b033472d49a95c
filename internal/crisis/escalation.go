package crisis

import (
	"context"
	"sync/atomic"

	"github.com/mindfulai/naina/internal/session"
)

// DefaultResourceThreshold is the post-increment crisis count at which resource
// responses replace supportive-first ones. Whether three is clinically right is
// not settled here; it is configurable.
const DefaultResourceThreshold = 3

// ErrStateUnavailable is returned when the session counter store fails.
var ErrStateUnavailable = session.ErrStateUnavailable

// Decision is the escalation outcome for one turn.
type Decision struct {
	ResponseText               string       `json:"response_text"`
	Kind                       ResponseKind `json:"response_kind"`
	ShouldIncrementCrisisCount bool         `json:"should_increment_crisis_count"`
	// CrisisCount is the count after this turn is committed.
	CrisisCount int `json:"crisis_count"`
	// FailSafe is set when the decision was made without session state.
	FailSafe bool `json:"fail_safe,omitempty"`
}

// Policy maps verdicts plus session counters to decisions.
type Policy struct {
	threshold atomic.Int64
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithResourceThreshold sets the crisis count at which resources are surfaced.
// Values below 1 are ignored.
func WithResourceThreshold(n int) PolicyOption {
	return func(p *Policy) {
		if n >= 1 {
			p.threshold.Store(int64(n))
		}
	}
}

// NewPolicy creates a policy with DefaultResourceThreshold unless overridden.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{}
	p.threshold.Store(DefaultResourceThreshold)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResourceThreshold returns the current threshold.
func (p *Policy) ResourceThreshold() int {
	return int(p.threshold.Load())
}

// SetResourceThreshold changes the threshold at runtime. Values below 1 are ignored.
func (p *Policy) SetResourceThreshold(n int) {
	if n >= 1 {
		p.threshold.Store(int64(n))
	}
}

// Decide is pure: counters is the snapshot before this turn, and the returned
// decision reports whether the caller must commit a crisis increment.
func (p *Policy) Decide(v Verdict, counters session.Counters) Decision {
	if !v.IsCrisis || !v.Severity.Escalates() {
		return Decision{
			Kind:        KindPassThrough,
			CrisisCount: counters.CrisisCount,
		}
	}

	next := counters.CrisisCount + 1
	if next < p.ResourceThreshold() {
		return Decision{
			ResponseText:               SupportiveResponse(v.Topic),
			Kind:                       KindSupportiveFirst,
			ShouldIncrementCrisisCount: true,
			CrisisCount:                next,
		}
	}
	return Decision{
		ResponseText:               ResourceResponse(v.Severity),
		Kind:                       KindResource,
		ShouldIncrementCrisisCount: true,
		CrisisCount:                next,
	}
}

// FailSafe is the decision for a crisis turn when session state is unavailable:
// surface resources rather than drop the turn.
func (p *Policy) FailSafe(v Verdict) Decision {
	return Decision{
		ResponseText:               ResourceResponse(v.Severity),
		Kind:                       KindResource,
		ShouldIncrementCrisisCount: true,
		FailSafe:                   true,
	}
}

// Escalate decides and commits a turn against store. Crisis turns are committed
// with one atomic increment and decided from the count it returns, so
// concurrent turns for the same user cannot lose updates. On store failure it
// returns the FailSafe decision together with an error wrapping
// ErrStateUnavailable.
func (p *Policy) Escalate(ctx context.Context, store session.Store, userID string, v Verdict) (Decision, error) {
	if !v.IsCrisis || !v.Severity.Escalates() {
		return p.Decide(v, session.Counters{}), nil
	}

	after, err := store.IncrementCrisis(ctx, userID)
	if err != nil {
		return p.FailSafe(v), session.Unavailable("escalate", err)
	}

	before := after
	before.CrisisCount = after.CrisisCount - 1
	return p.Decide(v, before), nil
}
