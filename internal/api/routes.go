package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/riskgraph/internal/alerts"
	"github.com/rawblock/riskgraph/internal/db"
	"github.com/rawblock/riskgraph/internal/engine"
	"github.com/rawblock/riskgraph/pkg/models"
)

// VerdictStore serves the persisted verdict history
type VerdictStore interface {
	GetVerdicts(ctx context.Context, q db.VerdictQuery) ([]models.RiskVerdict, int, error)
}

// AuditStore reads back the persisted audit trail
type AuditStore interface {
	LoadAuditEntries(ctx context.Context, start, end time.Time) ([]models.AuditEntry, error)
}

// Store is the persistence the HTTP surface reads from
type Store interface {
	VerdictStore
	AuditStore
}

// Options configures the HTTP surface
type Options struct {
	AuthToken       string
	AllowedOrigins  string // comma separated; empty or "*" allows any
	RateLimitPerMin int
	RateLimitBurst  int
	Release         bool
}

type APIHandler struct {
	engine *engine.Engine
	alerts *alerts.Manager
	store  Store
	wsHub  *Hub
}

// SetupRouter builds the gin engine. store may be nil when no database is
// configured.
func SetupRouter(eng *engine.Engine, alertMgr *alerts.Manager, store Store, wsHub *Hub, opts Options) (*gin.Engine, *RateLimiter) {
	r := gin.Default()
	r.Use(corsMiddleware(opts.AllowedOrigins))

	handler := &APIHandler{engine: eng, alerts: alertMgr, store: store, wsHub: wsHub}
	limiter := NewRateLimiter(opts.RateLimitPerMin, opts.RateLimitBurst)

	api := r.Group("/api/v1")
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)

		protected := api.Group("")
		protected.Use(AuthMiddleware(opts.AuthToken, opts.Release), limiter.Middleware())
		{
			protected.POST("/transfers", handler.handleSubmitTransfers)
			protected.POST("/analyze/transaction", handler.handleAnalyzeTransaction)
			protected.POST("/analyze/wallet", handler.handleAnalyzeWallet)
			protected.POST("/intelligence/attribution", handler.handleAttribution)
			protected.POST("/compliance/report", handler.handleComplianceReport)
			protected.GET("/alerts", handler.handleAlerts)
			protected.GET("/verdicts", handler.handleVerdicts)
			protected.GET("/audit/verify", handler.handleVerifyAudit)
			protected.GET("/stats", handler.handleStats)
		}
	}
	return r, limiter
}

// corsMiddleware echoes allowed origins. Production:
// ALLOWED_ORIGINS=https://compliance.example.com; development: leave empty for *.
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if originAllowed(allowedOrigins, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func originAllowed(allowedOrigins, origin string) bool {
	if allowedOrigins == "" || allowedOrigins == "*" {
		return true
	}
	for _, allowed := range strings.Split(allowedOrigins, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}
	return false
}
