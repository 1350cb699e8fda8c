package ws

import (
	"encoding/json"

	"match_coordinator/internal/logger"
)

const (
	// client → server
	MsgReadyForRound = "READY_FOR_ROUND"
	MsgHeartbeat     = "HEARTBEAT"
	MsgSDPOffer      = "SDP_OFFER"
	MsgSDPAnswer     = "SDP_ANSWER"
	MsgICE           = "ICE"
	MsgCommit        = "COMMIT"
	MsgReveal        = "REVEAL"
	MsgLeave         = "LEAVE"

	// server → client
	MsgAssign       = "ASSIGN"
	MsgTurnStart    = "TURN_START"
	MsgTurnResult   = "TURN_RESULT"
	MsgMatchResult  = "MATCH_RESULT"
	MsgOpponentLeft = "OPPONENT_LEFT"
	MsgError        = "ERROR"
)

// error codes carried in ERROR payloads
const (
	CodeProtocol  = "PROTOCOL_ERROR"
	CodeStaleTurn = "STALE_TURN"
	CodeBadCommit = "BAD_COMMIT"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// encode builds an outbound frame. Marshal failures are a programming
// error on our own payload types; they are logged and yield nil.
func encode(msgType string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("ws: encode payload", "type", msgType, "error", err)
		return nil
	}
	frame, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		logger.Error("ws: encode frame", "type", msgType, "error", err)
		return nil
	}
	return frame
}
