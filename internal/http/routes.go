package http

import (
	"context"
	"time"

	"match_coordinator/internal/config"
	"match_coordinator/internal/game"
	"match_coordinator/internal/http/handlers"
	"match_coordinator/internal/http/middleware"
	"match_coordinator/internal/match"
	"match_coordinator/internal/queue"
	"match_coordinator/internal/repository"
	"match_coordinator/internal/ticket"
	"match_coordinator/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the whole coordinator: ticket issuer, pairing
// queue, tournament registrar, match hub and the HTTP/WS surface on
// top of them. db may be nil; audit trails then live in memory only.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, db *pgxpool.Pool, version string) {
	var auditRepo *repository.AuditRepository
	if db != nil {
		auditRepo = repository.NewAuditRepository(db)
	}
	store := match.NewAuditStore(auditRepo)
	registry := queue.NewRegistry()
	issuer := ticket.NewIssuer(cfg.TicketSecret, cfg.TicketTTL)
	sources := game.NewSourceFactory(cfg.FallbackStrategy, func() int64 { return time.Now().UnixNano() })

	hub := ws.NewHub(ws.HubConfig{
		Match: match.Config{
			ConnectTimeout: cfg.ConnectTimeout,
			TurnBudget:     cfg.TurnBudget,
			Grace:          cfg.TurnGrace,
			ScoreTarget:    cfg.ScoreTarget,
			TurnCap:        cfg.TurnCap,
		},
		RelayLimit: cfg.RelayBuffer,
		RelayGrace: cfg.RelayGrace,
	}, registry, store, sources)

	q := queue.New("open", registry, issuer, hub.StartMatch)
	tournament := queue.NewTournament(registry, issuer, hub.StartMatch, hub.StartBotMatch)
	hub.Bind(q, tournament)

	go q.Run(context.Background(), cfg.PairInterval)
	store.StartCleanup(context.Background(), time.Hour)

	h := handlers.NewHandler(q, tournament, store, cfg.QueueWait)
	healthHandler := handlers.NewHealthHandler(db, version)
	adminHandler := handlers.NewAdminHandler(cfg.AdminToken, hub, q, tournament, registry, issuer, store)

	// Health checks and metrics (no rate limiting)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateWindow))

	v1.POST("/queue/enqueue", h.Enqueue)
	v1.POST("/queue/cancel", h.Cancel)
	v1.GET("/queue/assignment", h.QueueAssignment)

	v1.POST("/tournament/register", h.RegisterEntrant)
	v1.POST("/tournament/round/start", h.StartRound)
	v1.GET("/tournament/assignment", h.PollAssignment)

	v1.GET("/matches/:id/audit", h.MatchAudit)

	v1.POST("/admin/reset", adminHandler.Reset)

	// Control connection upgrade
	r.GET("/ws", ws.HandleWS(hub, issuer, cfg.AllowedOrigin))
}
