package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/metrics"
	"match_coordinator/internal/ticket"
)

var (
	// ErrNoOpponent is the explicit "retry" signal a waiting entrant
	// receives when the wait timeout elapses unpaired.
	ErrNoOpponent = errors.New("no opponent found")

	ErrNotQueued = errors.New("identity is not queued")
)

// Entrant is a waiting caller.
type Entrant struct {
	Identity    string
	DisplayName string
	JoinedAt    time.Time
}

// Assignment tells an entrant where to go: its match seat, the ticket
// gating the control connection, and who it plays.
type Assignment struct {
	MatchID string             `json:"matchId"`
	Role    domain.Role        `json:"role"`
	Ticket  string             `json:"ticket"`
	Peer    domain.Participant `json:"peer"`
}

// Starter creates the match runtime for a freshly paired couple and
// returns its id. The queue stays ignorant of how matches run.
type Starter func(p1, p2 Entrant, openPlay bool) (string, error)

// Queue holds open-play entrants and pairs the two longest-waiting on
// every enqueue and on a periodic tick.
type Queue struct {
	mu       sync.Mutex
	entrants []Entrant
	pending  map[string]*Assignment
	waiters  map[string]chan *Assignment

	registry *Registry
	issuer   *ticket.Issuer
	start    Starter
	queueID  string
}

func New(queueID string, registry *Registry, issuer *ticket.Issuer, start Starter) *Queue {
	return &Queue{
		pending:  make(map[string]*Assignment),
		waiters:  make(map[string]chan *Assignment),
		registry: registry,
		issuer:   issuer,
		start:    start,
		queueID:  queueID,
	}
}

// Enqueue adds the entrant and attempts pairing immediately. If the
// pairing happened on this call the caller's assignment is returned;
// otherwise nil means WAITING. Idempotent: an identity already queued
// or in a match is a no-op.
func (q *Queue) Enqueue(identity, displayName string) *Assignment {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.registry.TryQueue(identity) {
		// already queued or in a match; an undelivered assignment stays
		// pending for Await to pick up
		return nil
	}

	q.entrants = append(q.entrants, Entrant{
		Identity:    identity,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	})
	metrics.Enqueued.Inc()
	metrics.QueueDepth.Set(float64(len(q.entrants)))

	q.pairLocked()

	if a, ok := q.pending[identity]; ok {
		delete(q.pending, identity)
		return a
	}
	return nil
}

// Cancel removes a queued entrant. No-op if already paired or unknown.
func (q *Queue) Cancel(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(identity)
}

// Await blocks until an assignment is delivered for identity or the
// wait bound elapses, in which case the entrant is removed and
// ErrNoOpponent returned so the caller can retry.
func (q *Queue) Await(ctx context.Context, identity string, wait time.Duration) (*Assignment, error) {
	q.mu.Lock()
	if a, ok := q.pending[identity]; ok {
		delete(q.pending, identity)
		q.mu.Unlock()
		return a, nil
	}
	if m, ok := q.registry.Get(identity); !ok || m.Kind != KindQueued {
		q.mu.Unlock()
		return nil, ErrNotQueued
	}
	ch := make(chan *Assignment, 1)
	q.waiters[identity] = ch
	q.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case a, ok := <-ch:
		if !ok {
			// closed by Reset; the entrant is gone
			return nil, ErrNotQueued
		}
		return a, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	q.mu.Lock()
	delete(q.waiters, identity)
	// the assignment may have raced the timeout
	select {
	case a, ok := <-ch:
		q.mu.Unlock()
		if !ok {
			return nil, ErrNotQueued
		}
		return a, nil
	default:
	}
	q.removeLocked(identity)
	q.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, ErrNoOpponent
}

// Run drives the periodic pairing tick until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.mu.Lock()
			q.pairLocked()
			q.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// Depth reports how many entrants are waiting.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entrants)
}

// Reset force-clears all queue state (operator recovery).
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entrants {
		q.registry.Leave(e.Identity)
	}
	q.entrants = nil
	q.pending = make(map[string]*Assignment)
	for id, ch := range q.waiters {
		close(ch)
		delete(q.waiters, id)
	}
	metrics.QueueDepth.Set(0)
}

// pairLocked pops the two oldest entrants while at least two are
// present, starts their match and delivers assignments. First enqueued
// becomes P1. Caller holds q.mu.
func (q *Queue) pairLocked() {
	for len(q.entrants) >= 2 {
		p1, p2 := q.entrants[0], q.entrants[1]
		q.entrants = q.entrants[2:]

		matchID, err := q.start(p1, p2, true)
		if err != nil {
			logger.Error("queue: failed to start match", "error", err)
			// put the pair back at the head so a later tick can retry
			q.entrants = append([]Entrant{p1, p2}, q.entrants...)
			break
		}

		q.registry.EnterMatch(p1.Identity, matchID)
		q.registry.EnterMatch(p2.Identity, matchID)

		a1, err1 := q.assignment(matchID, domain.RoleP1, p1, p2)
		a2, err2 := q.assignment(matchID, domain.RoleP2, p2, p1)
		if err1 != nil || err2 != nil {
			logger.Error("queue: ticket issue failed", "match", matchID, "err1", err1, "err2", err2)
			continue
		}

		logger.Info("queue: paired",
			"match", matchID, "p1", p1.Identity, "p2", p2.Identity)

		q.deliverLocked(p1.Identity, a1)
		q.deliverLocked(p2.Identity, a2)
	}
	metrics.QueueDepth.Set(float64(len(q.entrants)))
}

func (q *Queue) assignment(matchID string, role domain.Role, self, peer Entrant) (*Assignment, error) {
	tok, err := q.issuer.Issue(self.Identity, ticket.Target{MatchID: matchID, Role: role})
	if err != nil {
		return nil, err
	}
	return &Assignment{
		MatchID: matchID,
		Role:    role,
		Ticket:  tok,
		Peer: domain.Participant{
			Identity:    peer.Identity,
			DisplayName: peer.DisplayName,
			Role:        role.Other(),
		},
	}, nil
}

func (q *Queue) deliverLocked(identity string, a *Assignment) {
	if ch, ok := q.waiters[identity]; ok {
		ch <- a
		delete(q.waiters, identity)
		return
	}
	q.pending[identity] = a
}

func (q *Queue) removeLocked(identity string) {
	for i, e := range q.entrants {
		if e.Identity == identity {
			q.entrants = append(q.entrants[:i], q.entrants[i+1:]...)
			q.registry.Leave(identity)
			metrics.QueueDepth.Set(float64(len(q.entrants)))
			return
		}
	}
}
