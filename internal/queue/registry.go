package queue

import "sync"

// MembershipKind says what an identity is currently doing.
type MembershipKind string

const (
	KindQueued  MembershipKind = "queued"
	KindInMatch MembershipKind = "in_match"
)

type Membership struct {
	Kind    MembershipKind
	MatchID string
}

// Registry is the single authoritative record of per-identity
// membership. Queue membership and match membership are mutually
// exclusive; every transition goes through here.
type Registry struct {
	mu      sync.Mutex
	members map[string]Membership
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]Membership)}
}

// TryQueue marks identity as queued. Returns false if the identity
// already holds any membership.
func (r *Registry) TryQueue(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[identity]; ok {
		return false
	}
	r.members[identity] = Membership{Kind: KindQueued}
	return true
}

// EnterMatch moves identity into a match, replacing any queued
// membership.
func (r *Registry) EnterMatch(identity, matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[identity] = Membership{Kind: KindInMatch, MatchID: matchID}
}

// Leave clears identity's membership. Idempotent.
func (r *Registry) Leave(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, identity)
}

func (r *Registry) Get(identity string) (Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[identity]
	return m, ok
}

func (r *Registry) Reset() {
	r.mu.Lock()
	r.members = make(map[string]Membership)
	r.mu.Unlock()
}
