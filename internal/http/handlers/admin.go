package handlers

import (
	"net/http"

	"match_coordinator/internal/logger"
	"match_coordinator/internal/match"
	"match_coordinator/internal/queue"
	"match_coordinator/internal/ticket"
	"match_coordinator/internal/ws"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves privileged operations gated by a shared token.
type AdminHandler struct {
	token      string
	hub        *ws.Hub
	queue      *queue.Queue
	tournament *queue.Tournament
	registry   *queue.Registry
	issuer     *ticket.Issuer
	audit      *match.AuditStore
}

func NewAdminHandler(token string, hub *ws.Hub, q *queue.Queue, t *queue.Tournament, reg *queue.Registry, iss *ticket.Issuer, audit *match.AuditStore) *AdminHandler {
	return &AdminHandler{
		token:      token,
		hub:        hub,
		queue:      q,
		tournament: t,
		registry:   reg,
		issuer:     iss,
		audit:      audit,
	}
}

// Reset force-clears all coordinator state: live matches, queue and
// tournament entrants, membership registry, consumed tickets and audit
// trails. Idempotent; resetting an idle coordinator is a no-op.
func (h *AdminHandler) Reset(c *gin.Context) {
	if h.token == "" || c.GetHeader("X-Admin-Token") != h.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.hub.Reset()
	h.queue.Reset()
	h.tournament.Reset()
	h.registry.Reset()
	h.issuer.Reset()
	h.audit.Reset()

	logger.Warn("admin reset executed", "ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
