package match

import (
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/game"
)

// TurnResult is one concluded turn as broadcast to both roles.
type TurnResult struct {
	MatchID    string
	Turn       int
	Winner     domain.TurnOutcome
	Moves      map[domain.Role]game.Move
	AutoPlayed []domain.Role
}

// Emitter owns the per-match delivery dedup set and the ordered audit
// trail. Delivery upstream is at-least-once; Apply makes it idempotent
// in effect by refusing a (match, turn) key it has already recorded.
type Emitter struct {
	mu        sync.Mutex
	delivered map[int]bool
	audit     domain.MatchAudit
}

func NewEmitter(m *domain.Match) *Emitter {
	return &Emitter{
		delivered: make(map[int]bool),
		audit: domain.MatchAudit{
			MatchID:    m.ID,
			P1Identity: m.P1.Identity,
			P2Identity: m.P2.Identity,
		},
	}
}

// Apply records the turn once. The second delivery of the same turn
// number returns false and must not be applied to scores.
func (e *Emitter) Apply(res *TurnResult, commits map[domain.Role]string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.delivered[res.Turn] {
		return false
	}
	e.delivered[res.Turn] = true

	moves := make(map[domain.Role]string, len(res.Moves))
	for r, m := range res.Moves {
		moves[r] = string(m)
	}
	commitCopy := make(map[domain.Role]string, len(commits))
	for r, c := range commits {
		commitCopy[r] = c
	}

	e.audit.Turns = append(e.audit.Turns, domain.TurnAudit{
		Turn:        res.Turn,
		Commits:     commitCopy,
		Moves:       moves,
		Outcome:     res.Winner,
		AutoPlayed:  append([]domain.Role(nil), res.AutoPlayed...),
		ConcludedAt: time.Now(),
	})
	return true
}

// Conclude seals the trail with the final standings.
func (e *Emitter) Conclude(winner domain.TurnOutcome, score map[domain.Role]int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	e.audit.Winner = winner
	e.audit.P1Score = score[domain.RoleP1]
	e.audit.P2Score = score[domain.RoleP2]
	e.audit.ConcludedAt = &now
}

// Audit returns a copy of the trail so far.
func (e *Emitter) Audit() domain.MatchAudit {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.audit
	a.Turns = append([]domain.TurnAudit(nil), e.audit.Turns...)
	return a
}
