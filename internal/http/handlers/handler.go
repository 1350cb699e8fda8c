package handlers

import (
	"errors"
	"net/http"
	"time"

	"match_coordinator/internal/match"
	"match_coordinator/internal/queue"

	"github.com/gin-gonic/gin"
)

// assignment/waiting statuses on the HTTP surface
const (
	StatusWaiting    = "WAITING"
	StatusAssign     = "ASSIGN"
	StatusCancelled  = "CANCELLED"
	StatusNoOpponent = "NO_OPPONENT"
)

type Handler struct {
	Queue      *queue.Queue
	Tournament *queue.Tournament
	Audit      *match.AuditStore
	QueueWait  time.Duration
}

func NewHandler(q *queue.Queue, t *queue.Tournament, audit *match.AuditStore, queueWait time.Duration) *Handler {
	return &Handler{
		Queue:      q,
		Tournament: t,
		Audit:      audit,
		QueueWait:  queueWait,
	}
}

type enqueueRequest struct {
	QueueID     string `json:"queueId"`
	Identity    string `json:"identity" binding:"required"`
	DisplayName string `json:"displayName"`
}

// Enqueue joins the open queue. When the pairing happens on this very
// call the assignment comes back synchronously; otherwise the caller
// polls GET /queue/assignment.
func (h *Handler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}

	name := req.DisplayName
	if name == "" {
		name = req.Identity
	}

	if a := h.Queue.Enqueue(req.Identity, name); a != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  StatusAssign,
			"matchId": a.MatchID,
			"role":    a.Role,
			"ticket":  a.Ticket,
			"peer":    a.Peer,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusWaiting})
}

type cancelRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// Cancel removes a queued entrant. Idempotent; cancelling when already
// paired or never queued succeeds with no effect.
func (h *Handler) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}
	h.Queue.Cancel(req.Identity)
	c.JSON(http.StatusOK, gin.H{"status": StatusCancelled})
}

// QueueAssignment long-polls for the caller's assignment, bounded by
// the configured queue wait. A timeout yields NO_OPPONENT so the
// client can retry.
func (h *Handler) QueueAssignment(c *gin.Context) {
	identity := c.Query("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}

	a, err := h.Queue.Await(c.Request.Context(), identity, h.QueueWait)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":  StatusAssign,
			"matchId": a.MatchID,
			"role":    a.Role,
			"ticket":  a.Ticket,
			"peer":    a.Peer,
		})
	case errors.Is(err, queue.ErrNoOpponent):
		c.JSON(http.StatusOK, gin.H{"status": StatusNoOpponent})
	case errors.Is(err, queue.ErrNotQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "not queued"})
	default:
		// request context cancelled
		c.Status(http.StatusRequestTimeout)
	}
}

type registerRequest struct {
	TournamentID string `json:"tournamentId" binding:"required"`
	Identity     string `json:"identity" binding:"required"`
	DisplayName  string `json:"displayName"`
}

// RegisterEntrant adds an entrant to a tournament. Idempotent.
func (h *Handler) RegisterEntrant(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tournamentId and identity required"})
		return
	}

	name := req.DisplayName
	if name == "" {
		name = req.Identity
	}
	h.Tournament.Register(req.TournamentID, req.Identity, name)
	c.JSON(http.StatusOK, gin.H{"registered": true})
}

type startRoundRequest struct {
	TournamentID string `json:"tournamentId" binding:"required"`
	Round        int    `json:"round"`
}

// StartRound pairs all registrants of a tournament round.
func (h *Handler) StartRound(c *gin.Context) {
	var req startRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tournamentId required"})
		return
	}
	pairs := h.Tournament.StartRound(req.TournamentID, req.Round)
	c.JSON(http.StatusOK, gin.H{"ok": true, "pairs": pairs})
}

// PollAssignment returns the caller's tournament assignment, waiting a
// bounded interval before answering WAIT.
func (h *Handler) PollAssignment(c *gin.Context) {
	tournamentID := c.Query("tournamentId")
	identity := c.Query("identity")
	if tournamentID == "" || identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tournamentId and identity required"})
		return
	}

	a, err := h.Tournament.Await(c.Request.Context(), tournamentID, identity, h.QueueWait)
	if errors.Is(err, queue.ErrNotQueued) {
		c.JSON(http.StatusConflict, gin.H{"error": "not registered"})
		return
	}
	if err != nil {
		c.Status(http.StatusRequestTimeout)
		return
	}
	if a == nil {
		c.JSON(http.StatusOK, gin.H{"status": StatusWaiting})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  StatusAssign,
		"matchId": a.MatchID,
		"role":    a.Role,
		"ticket":  a.Ticket,
		"peer":    a.Peer,
	})
}

// MatchAudit serves the ordered commit/reveal/outcome trail of a match
// for independent fairness verification.
func (h *Handler) MatchAudit(c *gin.Context) {
	matchID := c.Param("id")

	audit, err := h.Audit.Get(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, match.ErrAuditNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown match"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit lookup failed"})
		return
	}
	c.JSON(http.StatusOK, audit)
}
