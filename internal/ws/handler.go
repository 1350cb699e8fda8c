package ws

import (
	"net/http"

	"match_coordinator/internal/logger"
	"match_coordinator/internal/metrics"
	"match_coordinator/internal/ticket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS authenticates the control-connection handshake with a
// single-use ticket and hands the connection to the hub. Missing,
// expired, reused or mismatched tickets refuse the upgrade.
func HandleWS(hub *Hub, issuer *ticket.Issuer, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		tok := c.Query("ticket")
		identity := c.Query("identity")
		if tok == "" || identity == "" {
			metrics.WSAuthFailures.Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ticket and identity required"})
			return
		}

		grant, err := issuer.Redeem(tok, identity)
		if err != nil {
			metrics.WSAuthFailures.Inc()
			logger.Warn("ws: ticket rejected", "identity", identity, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if grant.MatchID == "" || !grant.Role.Valid() {
			metrics.WSAuthFailures.Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ticket is not bound to a match seat"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws: upgrade failed", "error", err)
			return
		}

		client := NewClient(grant.Identity, grant.MatchID, grant.Role, conn, hub)
		if err := hub.register(client); err != nil {
			logger.Warn("ws: registration refused", "identity", grant.Identity, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage,
				encode(MsgError, ErrorPayload{Code: CodeProtocol, Message: err.Error()}))
			_ = conn.Close()
			return
		}

		metrics.WSConnections.Inc()
		go client.Run()
	}
}
