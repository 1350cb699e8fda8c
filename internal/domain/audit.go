package domain

import "time"

// TurnOutcome is "P1", "P2" or "DRAW".
type TurnOutcome string

const OutcomeDraw TurnOutcome = "DRAW"

// TurnAudit is the immutable record of one concluded turn, kept for
// post-hoc fairness verification.
type TurnAudit struct {
	Turn        int             `json:"turn"`
	Commits     map[Role]string `json:"commits"`
	Moves       map[Role]string `json:"moves"`
	Outcome     TurnOutcome     `json:"outcome"`
	AutoPlayed  []Role          `json:"autoPlayedRoles"`
	ConcludedAt time.Time       `json:"concludedAt"`
}

// MatchAudit is the ordered turn trail of a match.
type MatchAudit struct {
	MatchID     string      `json:"matchId"`
	P1Identity  string      `json:"p1Identity"`
	P2Identity  string      `json:"p2Identity"`
	Turns       []TurnAudit `json:"turns"`
	Winner      TurnOutcome `json:"winner,omitempty"`
	P1Score     int         `json:"p1Score"`
	P2Score     int         `json:"p2Score"`
	ConcludedAt *time.Time  `json:"concludedAt,omitempty"`
}
