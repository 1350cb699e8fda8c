package match

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/game"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/metrics"
)

var (
	ErrStaleTurn           = errors.New("commit or reveal for a stale turn")
	ErrDuplicateCommit     = errors.New("role already committed this turn")
	ErrDuplicateReveal     = errors.New("role already revealed this turn")
	ErrRevealWithoutCommit = errors.New("reveal without a prior commit")
	ErrCommitMismatch      = errors.New("reveal does not match commit")
	ErrInvalidMove         = errors.New("invalid move")
	ErrBadCommitValue      = errors.New("malformed commit value")
)

// Config holds the per-match timing and terminal knobs.
type Config struct {
	ConnectTimeout time.Duration // bound on AWAITING_BOTH_CONNECTED
	TurnBudget     time.Duration // TURN_START to deadline
	Grace          time.Duration // slack past the deadline before fallback fires
	ScoreTarget    int           // first to this score wins
	TurnCap        int           // hard turn limit
}

// Notifier delivers outbound protocol events for one match. The
// machine never touches connections directly.
type Notifier interface {
	TurnStart(m *domain.Match, turn int, deadline, serverNow time.Time)
	TurnResult(m *domain.Match, res *TurnResult)
	MatchResult(m *domain.Match, winner domain.TurnOutcome)
	OpponentLeft(m *domain.Match, to domain.Role)
}

// DoneFunc runs once when the machine releases its match. survivor is
// the role still present after an abandon, or "" on normal conclusion.
type DoneFunc func(m *domain.Match, survivor domain.Role)

// Machine drives one match through
// AWAITING_BOTH_CONNECTED → TURN_IN_PROGRESS… → MATCH_CONCLUDED.
// It is the sole mutator of the match's turn counter and scores.
type Machine struct {
	match    *domain.Match
	cfg      Config
	notifier Notifier
	emitter  *Emitter
	fallback map[domain.Role]game.MoveSource
	onDone   DoneFunc

	mu        sync.Mutex
	connected map[domain.Role]bool
	commits   map[domain.Role]string
	reveals   map[domain.Role]game.Move
	lastMove  map[domain.Role]game.Move
	turnOpen  bool

	revealed   chan struct{}
	connectCh  chan domain.Role
	disconnect chan domain.Role
}

func NewMachine(m *domain.Match, cfg Config, notifier Notifier, emitter *Emitter, sources game.SourceFactory, onDone DoneFunc) *Machine {
	fallback := map[domain.Role]game.MoveSource{
		domain.RoleP1: sources(),
		domain.RoleP2: sources(),
	}
	return &Machine{
		match:      m,
		cfg:        cfg,
		notifier:   notifier,
		emitter:    emitter,
		fallback:   fallback,
		onDone:     onDone,
		connected:  make(map[domain.Role]bool),
		commits:    make(map[domain.Role]string),
		reveals:    make(map[domain.Role]game.Move),
		lastMove:   make(map[domain.Role]game.Move),
		revealed:   make(chan struct{}, 1),
		connectCh:  make(chan domain.Role, 2),
		disconnect: make(chan domain.Role, 2),
	}
}

func (mc *Machine) Match() *domain.Match { return mc.match }

// Connect reports that the given role's control connection is up.
func (mc *Machine) Connect(role domain.Role) {
	select {
	case mc.connectCh <- role:
	default:
	}
}

// Disconnect reports that the given role's control connection dropped
// or the role voluntarily left.
func (mc *Machine) Disconnect(role domain.Role) {
	select {
	case mc.disconnect <- role:
	default:
	}
}

// Run owns the match until conclusion. It must be started exactly once.
func (mc *Machine) Run(ctx context.Context) {
	m := mc.match
	logger.Info("match: starting", "match", m.ID, "p1", m.P1.Identity, "p2", m.P2.Identity, "bot", string(m.BotRole))

	if !mc.awaitConnections(ctx) {
		return
	}

	for {
		deadline := mc.beginTurn()
		timer := time.NewTimer(time.Until(deadline) + mc.cfg.Grace)

		timedOut := false
		select {
		case <-mc.revealed:
		case <-timer.C:
			timedOut = true
		case role := <-mc.disconnect:
			timer.Stop()
			mc.abandon(role)
			return
		case <-ctx.Done():
			timer.Stop()
			mc.release(domain.Role(""))
			return
		}
		timer.Stop()

		res := mc.concludeTurn(timedOut)
		if res == nil {
			// duplicate conclusion of the same turn; nothing applied
			continue
		}

		mc.notifier.TurnResult(m, res)
		metrics.TurnsPlayed.Inc()
		if len(res.AutoPlayed) > 0 {
			metrics.TimeoutFallbacks.Inc()
		}

		if winner, over := mc.terminal(); over {
			mc.notifier.MatchResult(m, winner)
			mc.emitter.Conclude(winner, m.Score)
			logger.Info("match: concluded", "match", m.ID, "winner", string(winner),
				"p1Score", m.Score[domain.RoleP1], "p2Score", m.Score[domain.RoleP2])
			mc.release(domain.Role(""))
			return
		}
	}
}

// Commit stores a role's commitment for the current turn. At most one
// commit per role per turn.
func (mc *Machine) Commit(role domain.Role, turn int, commitValue string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.turnOpen || turn != mc.match.Turn {
		return ErrStaleTurn
	}
	if !validCommitValue(commitValue) {
		return ErrBadCommitValue
	}
	if _, ok := mc.commits[role]; ok {
		return ErrDuplicateCommit
	}
	mc.commits[role] = commitValue
	return nil
}

// Reveal validates a role's move against its stored commit and records
// it. When every live role has revealed, the turn concludes early.
func (mc *Machine) Reveal(role domain.Role, turn int, move game.Move, nonce string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if !mc.turnOpen || turn != mc.match.Turn {
		return ErrStaleTurn
	}
	if !move.Valid() {
		return ErrInvalidMove
	}
	commit, ok := mc.commits[role]
	if !ok {
		return ErrRevealWithoutCommit
	}
	if _, ok := mc.reveals[role]; ok {
		return ErrDuplicateReveal
	}
	if CommitValue(mc.match.ID, role, turn, move, nonce) != commit {
		return ErrCommitMismatch
	}

	mc.reveals[role] = move

	if mc.allRevealedLocked() {
		select {
		case mc.revealed <- struct{}{}:
		default:
		}
	}
	return nil
}

// awaitConnections blocks until every live role has a connection. The
// wait is bounded; on timeout or early disconnect the match is torn
// down with both sides notified.
func (mc *Machine) awaitConnections(ctx context.Context) bool {
	if mc.match.BotRole != "" {
		mc.mu.Lock()
		mc.connected[mc.match.BotRole] = true
		mc.mu.Unlock()
	}

	timer := time.NewTimer(mc.cfg.ConnectTimeout)
	defer timer.Stop()

	for {
		mc.mu.Lock()
		ready := mc.connected[domain.RoleP1] && mc.connected[domain.RoleP2]
		mc.mu.Unlock()
		if ready {
			return true
		}

		select {
		case role := <-mc.connectCh:
			mc.mu.Lock()
			mc.connected[role] = true
			mc.mu.Unlock()
		case role := <-mc.disconnect:
			mc.abandon(role)
			return false
		case <-timer.C:
			logger.Warn("match: connect timeout", "match", mc.match.ID)
			mc.notifyPresentLeft()
			mc.release(domain.Role(""))
			return false
		case <-ctx.Done():
			mc.release(domain.Role(""))
			return false
		}
	}
}

// beginTurn advances the counter, opens commit/reveal collection and
// broadcasts TURN_START with the absolute deadline plus the server's
// current clock for client skew correction.
func (mc *Machine) beginTurn() time.Time {
	mc.mu.Lock()
	mc.match.Turn++
	mc.match.State = domain.StateTurnInProgress
	mc.commits = make(map[domain.Role]string)
	mc.reveals = make(map[domain.Role]game.Move)

	// drain a signal left over from a previous turn. Raising the signal
	// requires the lock and an open turn, so draining here cannot swallow
	// a signal belonging to this turn.
	select {
	case <-mc.revealed:
	default:
	}
	mc.turnOpen = true
	turn := mc.match.Turn
	mc.mu.Unlock()

	now := time.Now()
	deadline := now.Add(mc.cfg.TurnBudget)
	mc.notifier.TurnStart(mc.match, turn, deadline, now)
	return deadline
}

// concludeTurn closes the turn, synthesizes any missing moves, scores
// the outcome and records it exactly once. Returns nil if this turn
// was already applied.
func (mc *Machine) concludeTurn(timedOut bool) *TurnResult {
	mc.mu.Lock()

	mc.turnOpen = false
	turn := mc.match.Turn

	moves := make(map[domain.Role]game.Move, 2)
	var auto []domain.Role
	for _, role := range []domain.Role{domain.RoleP1, domain.RoleP2} {
		if mv, ok := mc.reveals[role]; ok {
			moves[role] = mv
			continue
		}
		opp := mc.lastMove[role.Other()]
		var last *game.Move
		if opp != "" {
			last = &opp
		}
		moves[role] = mc.fallback[role].Next(last)
		auto = append(auto, role)
	}
	sort.Slice(auto, func(i, j int) bool { return auto[i] < auto[j] })

	for role, mv := range moves {
		mc.lastMove[role] = mv
	}

	var winner domain.TurnOutcome
	switch game.Compare(moves[domain.RoleP1], moves[domain.RoleP2]) {
	case 1:
		winner = domain.TurnOutcome(domain.RoleP1)
	case -1:
		winner = domain.TurnOutcome(domain.RoleP2)
	default:
		winner = domain.OutcomeDraw
	}

	res := &TurnResult{
		MatchID:    mc.match.ID,
		Turn:       turn,
		Winner:     winner,
		Moves:      moves,
		AutoPlayed: auto,
	}
	commits := mc.commits
	mc.mu.Unlock()

	if !mc.emitter.Apply(res, commits) {
		return nil
	}

	mc.mu.Lock()
	if winner != domain.OutcomeDraw {
		mc.match.Score[domain.Role(winner)]++
	}
	mc.mu.Unlock()

	if timedOut && len(auto) > 0 {
		logger.Info("match: timeout fallback", "match", mc.match.ID, "turn", turn, "autoPlayed", auto)
	}
	return res
}

func (mc *Machine) allRevealedLocked() bool {
	for _, role := range []domain.Role{domain.RoleP1, domain.RoleP2} {
		if role == mc.match.BotRole {
			continue
		}
		if _, ok := mc.reveals[role]; !ok {
			return false
		}
	}
	return true
}

func (mc *Machine) terminal() (domain.TurnOutcome, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	p1, p2 := mc.match.Score[domain.RoleP1], mc.match.Score[domain.RoleP2]
	if p1 < mc.cfg.ScoreTarget && p2 < mc.cfg.ScoreTarget && mc.match.Turn < mc.cfg.TurnCap {
		return "", false
	}
	switch {
	case p1 > p2:
		return domain.TurnOutcome(domain.RoleP1), true
	case p2 > p1:
		return domain.TurnOutcome(domain.RoleP2), true
	default:
		return domain.OutcomeDraw, true
	}
}

// abandon tears the match down after a mid-match disconnect. The
// remaining role is notified immediately; there is no deadline wait.
func (mc *Machine) abandon(gone domain.Role) {
	survivor := gone.Other()
	logger.Info("match: abandoned", "match", mc.match.ID, "left", string(gone))

	if survivor != mc.match.BotRole {
		mc.notifier.OpponentLeft(mc.match, survivor)
	}
	mc.emitter.Conclude(domain.TurnOutcome(survivor), mc.match.Score)
	mc.release(survivor)
}

func (mc *Machine) notifyPresentLeft() {
	mc.mu.Lock()
	var present []domain.Role
	for _, role := range []domain.Role{domain.RoleP1, domain.RoleP2} {
		if mc.connected[role] && role != mc.match.BotRole {
			present = append(present, role)
		}
	}
	mc.mu.Unlock()

	for _, role := range present {
		mc.notifier.OpponentLeft(mc.match, role)
	}
}

func (mc *Machine) release(survivor domain.Role) {
	mc.mu.Lock()
	mc.match.State = domain.StateConcluded
	mc.turnOpen = false
	mc.mu.Unlock()

	if mc.onDone != nil {
		mc.onDone(mc.match, survivor)
	}
}
