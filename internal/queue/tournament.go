package queue

import (
	"context"
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/ticket"
)

// BotStarter creates a match whose P2 seat is played by the house, for
// the odd entrant of a tournament round.
type BotStarter func(p Entrant) (string, error)

// Tournament holds pre-registered entrants per tournament id and pairs
// an entire round at once when the operator starts it. Entrants poll
// (bounded wait, no busy loop) until their assignment is ready.
type Tournament struct {
	mu          sync.Mutex
	registrants map[string][]Entrant
	seen        map[string]map[string]bool
	pending     map[string]map[string]*Assignment
	waiters     map[string]map[string]chan *Assignment

	registry *Registry
	issuer   *ticket.Issuer
	start    Starter
	startBot BotStarter
}

func NewTournament(registry *Registry, issuer *ticket.Issuer, start Starter, startBot BotStarter) *Tournament {
	return &Tournament{
		registrants: make(map[string][]Entrant),
		seen:        make(map[string]map[string]bool),
		pending:     make(map[string]map[string]*Assignment),
		waiters:     make(map[string]map[string]chan *Assignment),
		registry:    registry,
		issuer:      issuer,
		start:       start,
		startBot:    startBot,
	}
}

// Register adds an entrant to a tournament. Idempotent.
func (t *Tournament) Register(tournamentID, identity, displayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[tournamentID] == nil {
		t.seen[tournamentID] = make(map[string]bool)
	}
	if t.seen[tournamentID][identity] {
		return
	}
	t.seen[tournamentID][identity] = true
	t.registrants[tournamentID] = append(t.registrants[tournamentID], Entrant{
		Identity:    identity,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	})
}

// StartRound pairs the tournament's current registrants in registration
// order and stores their assignments. Entrants whose identity is busy
// elsewhere sit the round out; an odd entrant gets a seat against the
// house. Returns the number of two-player pairs.
func (t *Tournament) StartRound(tournamentID string, round int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.registrants[tournamentID]
	delete(t.registrants, tournamentID)
	delete(t.seen, tournamentID)

	// claim each entrant's membership before pairing; an identity that
	// is queued for open play or inside a match sits this round out
	var eligible []Entrant
	for _, e := range list {
		if !t.registry.TryQueue(e.Identity) {
			logger.Warn("tournament: entrant busy, skipped",
				"tournament", tournamentID, "identity", e.Identity)
			continue
		}
		eligible = append(eligible, e)
	}

	pairs := 0
	for i := 0; i+1 < len(eligible); i += 2 {
		p1, p2 := eligible[i], eligible[i+1]
		matchID, err := t.start(p1, p2, false)
		if err != nil {
			logger.Error("tournament: failed to start match", "tournament", tournamentID, "error", err)
			t.registry.Leave(p1.Identity)
			t.registry.Leave(p2.Identity)
			continue
		}
		t.registry.EnterMatch(p1.Identity, matchID)
		t.registry.EnterMatch(p2.Identity, matchID)

		a1, err1 := t.assignment(matchID, domain.RoleP1, p1, p2)
		a2, err2 := t.assignment(matchID, domain.RoleP2, p2, p1)
		if err1 != nil || err2 != nil {
			logger.Error("tournament: ticket issue failed", "match", matchID, "err1", err1, "err2", err2)
			continue
		}
		t.deliverLocked(tournamentID, p1.Identity, a1)
		t.deliverLocked(tournamentID, p2.Identity, a2)
		pairs++
	}

	if len(eligible)%2 == 1 {
		odd := eligible[len(eligible)-1]
		matchID, err := t.startBot(odd)
		if err != nil {
			logger.Error("tournament: failed to start bot match", "tournament", tournamentID, "error", err)
			t.registry.Leave(odd.Identity)
		} else {
			t.registry.EnterMatch(odd.Identity, matchID)
			a, err := t.assignment(matchID, domain.RoleP1, odd, Entrant{Identity: "bot", DisplayName: "House"})
			if err == nil {
				t.deliverLocked(tournamentID, odd.Identity, a)
			}
		}
	}

	logger.Info("tournament: round started",
		"tournament", tournamentID, "round", round, "pairs", pairs, "entrants", len(list))
	return pairs
}

// Await blocks until the entrant's assignment is ready or the wait
// bound elapses. A nil assignment with nil error means "keep polling".
func (t *Tournament) Await(ctx context.Context, tournamentID, identity string, wait time.Duration) (*Assignment, error) {
	t.mu.Lock()
	if a := t.takeLocked(tournamentID, identity); a != nil {
		t.mu.Unlock()
		return a, nil
	}
	ch := make(chan *Assignment, 1)
	if t.waiters[tournamentID] == nil {
		t.waiters[tournamentID] = make(map[string]chan *Assignment)
	}
	t.waiters[tournamentID][identity] = ch
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case a, ok := <-ch:
		if !ok {
			// closed by Reset; the registration is gone
			return nil, ErrNotQueued
		}
		return a, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	t.mu.Lock()
	if w := t.waiters[tournamentID]; w != nil {
		delete(w, identity)
	}
	select {
	case a, ok := <-ch:
		t.mu.Unlock()
		if !ok {
			return nil, ErrNotQueued
		}
		return a, nil
	default:
	}
	t.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, nil
}

// Reset force-clears all tournament state. Registrants hold no
// membership until a round starts, so there is nothing to release in
// the registry.
func (t *Tournament) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registrants = make(map[string][]Entrant)
	t.seen = make(map[string]map[string]bool)
	t.pending = make(map[string]map[string]*Assignment)
	for _, w := range t.waiters {
		for id, ch := range w {
			close(ch)
			delete(w, id)
		}
	}
	t.waiters = make(map[string]map[string]chan *Assignment)
}

func (t *Tournament) assignment(matchID string, role domain.Role, self, peer Entrant) (*Assignment, error) {
	tok, err := t.issuer.Issue(self.Identity, ticket.Target{MatchID: matchID, Role: role})
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

func (t *Tournament) deliverLocked(tournamentID, identity string, a *Assignment) {
	if w := t.waiters[tournamentID]; w != nil {
		if ch, ok := w[identity]; ok {
			ch <- a
			delete(w, identity)
			return
		}
	}
	if t.pending[tournamentID] == nil {
		t.pending[tournamentID] = make(map[string]*Assignment)
	}
	t.pending[tournamentID][identity] = a
}

func (t *Tournament) takeLocked(tournamentID, identity string) *Assignment {
	if p := t.pending[tournamentID]; p != nil {
		if a, ok := p[identity]; ok {
			delete(p, identity)
			return a
		}
	}
	return nil
}
