package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/game"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/match"
	"match_coordinator/internal/metrics"
	"match_coordinator/internal/queue"

	"github.com/google/uuid"
)

// HubConfig carries the knobs the hub hands to every match it starts.
type HubConfig struct {
	Match      match.Config
	RelayLimit int
	RelayGrace time.Duration
}

type matchRuntime struct {
	machine *match.Machine
	relay   *Relay
	cancel  context.CancelFunc
}

// Hub is the connection/session bookkeeper: it maps identities to open
// control connections, owns the per-match runtimes, implements the
// machine's outbound notifications and requeues open-play survivors.
type Hub struct {
	cfg      HubConfig
	registry *queue.Registry
	store    *match.AuditStore
	sources  game.SourceFactory

	// set after construction; the queue needs the hub as its Starter
	queue      *queue.Queue
	tournament *queue.Tournament

	mu       sync.RWMutex
	sessions map[string]*Client
	matches  map[string]*matchRuntime
}

func NewHub(cfg HubConfig, registry *queue.Registry, store *match.AuditStore, sources game.SourceFactory) *Hub {
	return &Hub{
		cfg:      cfg,
		registry: registry,
		store:    store,
		sources:  sources,
		sessions: make(map[string]*Client),
		matches:  make(map[string]*matchRuntime),
	}
}

// Bind wires the pairing components in after construction.
func (h *Hub) Bind(q *queue.Queue, t *queue.Tournament) {
	h.queue = q
	h.tournament = t
}

// StartMatch is the queue.Starter: it creates the match runtime and
// launches its state machine.
func (h *Hub) StartMatch(p1, p2 queue.Entrant, openPlay bool) (string, error) {
	m := domain.NewMatch(uuid.NewString(),
		domain.Participant{Identity: p1.Identity, DisplayName: p1.DisplayName},
		domain.Participant{Identity: p2.Identity, DisplayName: p2.DisplayName},
		openPlay)
	h.launch(m)

	mode := "tournament"
	if openPlay {
		mode = "open"
	}
	metrics.MatchesStarted.WithLabelValues(mode).Inc()
	return m.ID, nil
}

// StartBotMatch seats the entrant against the house.
func (h *Hub) StartBotMatch(p queue.Entrant) (string, error) {
	m := domain.NewMatch(uuid.NewString(),
		domain.Participant{Identity: p.Identity, DisplayName: p.DisplayName},
		domain.Participant{Identity: "bot", DisplayName: "House"},
		false)
	m.BotRole = domain.RoleP2
	h.launch(m)

	metrics.MatchesStarted.WithLabelValues("bot").Inc()
	return m.ID, nil
}

func (h *Hub) launch(m *domain.Match) {
	emitter := match.NewEmitter(m)
	h.store.Track(m.ID, emitter)

	machine := match.NewMachine(m, h.cfg.Match, h, emitter, h.sources, h.onMatchDone)
	ctx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	h.matches[m.ID] = &matchRuntime{
		machine: machine,
		relay:   NewRelay(h.cfg.RelayLimit, h.cfg.RelayGrace),
		cancel:  cancel,
	}
	metrics.ActiveMatches.Set(float64(len(h.matches)))
	h.mu.Unlock()

	go machine.Run(ctx)
}

// register attaches an authenticated connection to its match seat.
func (h *Hub) register(c *Client) error {
	h.mu.Lock()
	rt, ok := h.matches[c.MatchID]
	if !ok {
		h.mu.Unlock()
		return errors.New("match no longer exists")
	}
	m := rt.machine.Match()
	if m.IdentityRole(c.Identity) != c.Role {
		h.mu.Unlock()
		return errors.New("identity does not hold this seat")
	}
	if old, ok := h.sessions[c.Identity]; ok && old != c {
		old.Close()
	}
	h.sessions[c.Identity] = c
	h.mu.Unlock()

	c.enqueue(encode(MsgAssign, AssignPayload{
		MatchID: m.ID,
		Role:    c.Role,
		Peer:    m.Participant(c.Role.Other()),
	}))

	rt.machine.Connect(c.Role)
	rt.relay.Flush(c, c.Role)

	logger.Info("ws: connected", "identity", c.Identity, "match", c.MatchID, "role", string(c.Role))
	return nil
}

func (h *Hub) onDisconnect(c *Client) {
	h.mu.Lock()
	current := false
	if cur, ok := h.sessions[c.Identity]; ok && cur == c {
		delete(h.sessions, c.Identity)
		current = true
	}
	rt := h.matches[c.MatchID]
	h.mu.Unlock()

	// a connection replaced by a newer one must not tear the match down
	if current && rt != nil {
		rt.machine.Disconnect(c.Role)
	}
	logger.Info("ws: disconnected", "identity", c.Identity, "match", c.MatchID)
}

// onMatchDone releases the match's resources and, in open play,
// requeues a survivor so it does not have to re-enter manually.
func (h *Hub) onMatchDone(m *domain.Match, survivor domain.Role) {
	h.mu.Lock()
	delete(h.matches, m.ID)
	metrics.ActiveMatches.Set(float64(len(h.matches)))
	h.mu.Unlock()

	h.store.Concluded(m.ID)
	h.registry.Leave(m.P1.Identity)
	h.registry.Leave(m.P2.Identity)

	if m.OpenPlay && survivor != "" && h.queue != nil {
		p := m.Participant(survivor)
		logger.Info("hub: requeuing survivor", "identity", p.Identity, "match", m.ID)
		h.queue.Enqueue(p.Identity, p.DisplayName)
	}
}

// Reset force-clears all live state (operator recovery). Idempotent.
func (h *Hub) Reset() {
	h.mu.Lock()
	runtimes := make([]*matchRuntime, 0, len(h.matches))
	for _, rt := range h.matches {
		runtimes = append(runtimes, rt)
	}
	h.matches = make(map[string]*matchRuntime)
	sessions := h.sessions
	h.sessions = make(map[string]*Client)
	metrics.ActiveMatches.Set(0)
	h.mu.Unlock()

	for _, rt := range runtimes {
		rt.cancel()
	}
	for _, c := range sessions {
		c.Close()
	}
}

// handleMessage dispatches one inbound frame from an authenticated
// connection.
func (h *Hub) handleMessage(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "malformed message"}))
		return
	}

	switch env.Type {
	case MsgHeartbeat:
		// keepalive only

	case MsgReadyForRound:
		var p ReadyForRoundPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.TournamentID == "" {
			c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "bad READY_FOR_ROUND"}))
			return
		}
		if h.tournament != nil {
			h.tournament.Register(p.TournamentID, c.Identity, c.Identity)
		}

	case MsgSDPOffer, MsgSDPAnswer, MsgICE:
		h.relaySignal(c, env.Type, env.Data, raw)

	case MsgCommit:
		var p CommitPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "bad COMMIT"}))
			return
		}
		h.applyCommit(c, &p)

	case MsgReveal:
		var p RevealPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "bad REVEAL"}))
			return
		}
		h.applyReveal(c, &p)

	case MsgLeave:
		h.mu.RLock()
		rt := h.matches[c.MatchID]
		h.mu.RUnlock()
		if rt != nil {
			rt.machine.Disconnect(c.Role)
		}

	default:
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "unknown message type"}))
	}
}

// relaySignal forwards the raw frame verbatim to the peer role. A
// match id that does not belong to the sender's authenticated seat is
// the spoofing boundary: dropped and logged, no error reply.
func (h *Hub) relaySignal(c *Client, msgType string, data json.RawMessage, raw []byte) {
	var p SignalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "bad " + msgType}))
		return
	}
	if p.MatchID != c.MatchID {
		metrics.RelayDropped.WithLabelValues("spoofed").Inc()
		logger.Warn("relay: match id mismatch",
			"identity", c.Identity, "claimed", p.MatchID, "actual", c.MatchID)
		return
	}

	h.mu.RLock()
	rt := h.matches[c.MatchID]
	peer := h.peerClientLocked(rt, c)
	h.mu.RUnlock()

	if rt == nil {
		metrics.RelayDropped.WithLabelValues("closed").Inc()
		return
	}
	rt.relay.Forward(peer, c.Role.Other(), raw)
}

// peerClientLocked resolves the opposite seat's connection, nil when
// offline or the seat is the house. Caller holds h.mu.
func (h *Hub) peerClientLocked(rt *matchRuntime, c *Client) *Client {
	if rt == nil {
		return nil
	}
	m := rt.machine.Match()
	other := m.Participant(c.Role.Other())
	return h.sessions[other.Identity]
}

func (h *Hub) applyCommit(c *Client, p *CommitPayload) {
	rt := h.runtimeFor(c, p.MatchID)
	if rt == nil {
		return
	}
	err := rt.machine.Commit(c.Role, p.Turn, p.CommitValue)
	h.reportTurnError(c, "commit", p.Turn, err)
}

func (h *Hub) applyReveal(c *Client, p *RevealPayload) {
	rt := h.runtimeFor(c, p.MatchID)
	if rt == nil {
		return
	}
	err := rt.machine.Reveal(c.Role, p.Turn, game.Move(p.Move), p.Nonce)
	h.reportTurnError(c, "reveal", p.Turn, err)
}

func (h *Hub) runtimeFor(c *Client, claimedMatchID string) *matchRuntime {
	if claimedMatchID != c.MatchID {
		logger.Warn("ws: match id mismatch", "identity", c.Identity, "claimed", claimedMatchID)
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "wrong match id"}))
		return nil
	}
	h.mu.RLock()
	rt := h.matches[c.MatchID]
	h.mu.RUnlock()
	if rt == nil {
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: "match concluded"}))
	}
	return rt
}

// reportTurnError maps machine errors onto the wire. Stale deliveries
// are rejected silently per the protocol; everything else is the
// caller's protocol violation.
func (h *Hub) reportTurnError(c *Client, op string, turn int, err error) {
	switch {
	case err == nil:
	case errors.Is(err, match.ErrStaleTurn):
		logger.Debug("ws: stale "+op, "identity", c.Identity, "turn", turn)
	case errors.Is(err, match.ErrCommitMismatch):
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeBadCommit, Message: "reveal does not match commit"}))
	default:
		c.enqueue(encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: err.Error()}))
	}
}

// --- match.Notifier ---

func (h *Hub) TurnStart(m *domain.Match, turn int, deadline, serverNow time.Time) {
	frame := encode(MsgTurnStart, TurnStartPayload{
		MatchID:          m.ID,
		Turn:             turn,
		DeadlineEpochMs:  deadline.UnixMilli(),
		ServerNowEpochMs: serverNow.UnixMilli(),
	})
	h.sendToRole(m, domain.RoleP1, frame)
	h.sendToRole(m, domain.RoleP2, frame)
}

func (h *Hub) TurnResult(m *domain.Match, res *match.TurnResult) {
	auto := make([]string, 0, len(res.AutoPlayed))
	for _, r := range res.AutoPlayed {
		auto = append(auto, string(r))
	}
	frame := encode(MsgTurnResult, TurnResultPayload{
		MatchID:         m.ID,
		Turn:            res.Turn,
		WinnerRole:      string(res.Winner),
		P1Move:          string(res.Moves[domain.RoleP1]),
		P2Move:          string(res.Moves[domain.RoleP2]),
		AutoPlayedRoles: auto,
	})
	h.sendToRole(m, domain.RoleP1, frame)
	h.sendToRole(m, domain.RoleP2, frame)
}

func (h *Hub) MatchResult(m *domain.Match, winner domain.TurnOutcome) {
	frame := encode(MsgMatchResult, MatchResultPayload{
		MatchID:    m.ID,
		WinnerRole: string(winner),
		P1Score:    m.Score[domain.RoleP1],
		P2Score:    m.Score[domain.RoleP2],
	})
	h.sendToRole(m, domain.RoleP1, frame)
	h.sendToRole(m, domain.RoleP2, frame)
}

func (h *Hub) OpponentLeft(m *domain.Match, to domain.Role) {
	h.sendToRole(m, to, encode(MsgOpponentLeft, OpponentLeftPayload{MatchID: m.ID}))
}

func (h *Hub) sendToRole(m *domain.Match, role domain.Role, frame []byte) {
	if role == m.BotRole {
		return
	}
	identity := m.Participant(role).Identity

	h.mu.RLock()
	c := h.sessions[identity]
	h.mu.RUnlock()

	if c != nil {
		c.enqueue(frame)
	}
}
