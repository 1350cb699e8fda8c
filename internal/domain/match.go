package domain

import "time"

// Role is one of the two fixed seats of a match.
type Role string

const (
	RoleP1 Role = "P1"
	RoleP2 Role = "P2"
)

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == RoleP1 {
		return RoleP2
	}
	return RoleP1
}

func (r Role) Valid() bool {
	return r == RoleP1 || r == RoleP2
}

type MatchState string

const (
	StateAwaitingConnect MatchState = "awaiting_both_connected"
	StateTurnInProgress  MatchState = "turn_in_progress"
	StateConcluded       MatchState = "match_concluded"
)

// Participant is one seat of a match. Identity is the caller's opaque
// stable id; it arrives already verified by the identity provider.
type Participant struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Match is the authoritative record of one paired game. Only the turn
// state machine mutates Turn, Score and State after creation.
type Match struct {
	ID        string
	P1        Participant
	P2        Participant
	Turn      int
	Score     map[Role]int
	State     MatchState
	CreatedAt time.Time

	// BotRole is set when one seat is played by the house (odd
	// tournament entrant). Empty for player-vs-player matches.
	BotRole Role

	// OpenPlay marks open-queue matches; survivors of these are
	// requeued automatically when the opponent leaves.
	OpenPlay bool
}

func NewMatch(id string, p1, p2 Participant, openPlay bool) *Match {
	p1.Role = RoleP1
	p2.Role = RoleP2
	return &Match{
		ID:        id,
		P1:        p1,
		P2:        p2,
		Score:     map[Role]int{RoleP1: 0, RoleP2: 0},
		State:     StateAwaitingConnect,
		CreatedAt: time.Now(),
		OpenPlay:  openPlay,
	}
}

func (m *Match) Participant(r Role) Participant {
	if r == RoleP1 {
		return m.P1
	}
	return m.P2
}

// IdentityRole maps an identity to its role, or "" when the identity is
// not part of this match.
func (m *Match) IdentityRole(identity string) Role {
	switch identity {
	case m.P1.Identity:
		return RoleP1
	case m.P2.Identity:
		return RoleP2
	}
	return ""
}
