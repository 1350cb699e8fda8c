package ws

import (
	"encoding/json"

	"match_coordinator/internal/domain"
)

// client → server

type ReadyForRoundPayload struct {
	TournamentID string `json:"tournamentId"`
	Round        int    `json:"round"`
}

// SignalPayload carries SDP_OFFER, SDP_ANSWER and ICE alike; the relay
// never looks inside Payload.
type SignalPayload struct {
	MatchID string          `json:"matchId"`
	Payload json.RawMessage `json:"payload"`
}

type CommitPayload struct {
	MatchID     string `json:"matchId"`
	Turn        int    `json:"turn"`
	CommitValue string `json:"commitValue"`
}

type RevealPayload struct {
	MatchID string `json:"matchId"`
	Turn    int    `json:"turn"`
	Move    string `json:"move"`
	Nonce   string `json:"nonce"`
}

type LeavePayload struct {
	MatchID string `json:"matchId"`
}

// server → client

type AssignPayload struct {
	MatchID string             `json:"matchId"`
	Role    domain.Role        `json:"role"`
	Peer    domain.Participant `json:"peer"`
}

type TurnStartPayload struct {
	MatchID          string `json:"matchId"`
	Turn             int    `json:"turn"`
	DeadlineEpochMs  int64  `json:"deadlineEpochMs"`
	ServerNowEpochMs int64  `json:"serverNowEpochMs"`
}

type TurnResultPayload struct {
	MatchID         string   `json:"matchId"`
	Turn            int      `json:"turn"`
	WinnerRole      string   `json:"winnerRole"`
	P1Move          string   `json:"p1Move"`
	P2Move          string   `json:"p2Move"`
	AutoPlayedRoles []string `json:"autoPlayedRoles"`
}

type MatchResultPayload struct {
	MatchID    string `json:"matchId"`
	WinnerRole string `json:"winnerRole"`
	P1Score    int    `json:"p1Score"`
	P2Score    int    `json:"p2Score"`
}

type OpponentLeftPayload struct {
	MatchID string `json:"matchId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
