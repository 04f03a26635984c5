package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/riskgraph/internal/alerts"
	"github.com/rawblock/riskgraph/internal/db"
	"github.com/rawblock/riskgraph/internal/engine"
	"github.com/rawblock/riskgraph/pkg/models"
)

const defaultReportWindow = 30 * 24 * time.Hour

// writeError maps engine errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// handleSubmitTransfers adds transfers to the graph without scoring them.
// POST /api/v1/transfers { "transfers": [ {fromAddress, toAddress, amount, timestamp, hash} ] }
func (h *APIHandler) handleSubmitTransfers(c *gin.Context) {
	var req struct {
		Transfers []models.Transfer `json:"transfers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	accepted := 0
	for i, t := range req.Transfers {
		if err := h.engine.SubmitTransfer(c.Request.Context(), t); err != nil {
			if errors.Is(err, engine.ErrInvalidInput) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i, "accepted": accepted})
				return
			}
			writeError(c, err)
			return
		}
		accepted++
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "accepted": accepted})
}

// handleAnalyzeTransaction scores a single transfer.
// POST /api/v1/analyze/transaction
// { fromAddress, toAddress, amount, timestamp, hash, blockchain, frameworks: ["BSA"] }
func (h *APIHandler) handleAnalyzeTransaction(c *gin.Context) {
	var req struct {
		models.Transaction
		Frameworks []string `json:"frameworks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	verdict, err := h.engine.AnalyzeTransaction(c.Request.Context(), req.Transaction, req.Frameworks)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// handleAnalyzeWallet scores an address from its transfer history.
// POST /api/v1/analyze/wallet { address, blockchain, transactions: [...] }
func (h *APIHandler) handleAnalyzeWallet(c *gin.Context) {
	var req struct {
		Address      string            `json:"address"`
		Blockchain   string            `json:"blockchain"`
		Transactions []models.Transfer `json:"transactions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	verdict, err := h.engine.AnalyzeWallet(c.Request.Context(), req.Address, req.Blockchain, req.Transactions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// handleAttribution attributes an address from the graph.
// POST /api/v1/intelligence/attribution { address, blockchain }
func (h *APIHandler) handleAttribution(c *gin.Context) {
	var req struct {
		Address    string `json:"address"`
		Blockchain string `json:"blockchain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.engine.AttributeAddress(c.Request.Context(), req.Address, req.Blockchain)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleComplianceReport summarises the audit trail. Both bounds are optional
// RFC3339 times; the default period is the last 30 days.
// POST /api/v1/compliance/report { startDate, endDate }
func (h *APIHandler) handleComplianceReport(c *gin.Context) {
	var req struct {
		StartDate *time.Time `json:"startDate"`
		EndDate   *time.Time `json:"endDate"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	end := time.Now().UTC()
	if req.EndDate != nil {
		end = *req.EndDate
	}
	start := end.Add(-defaultReportWindow)
	if req.StartDate != nil {
		start = *req.StartDate
	}

	report, err := h.engine.GenerateComplianceReport(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleAlerts returns recent alerts, newest first.
// GET /api/v1/alerts?limit=50&minSeverity=HIGH
func (h *APIHandler) handleAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if sev := c.Query("minSeverity"); sev != "" {
		level, ok := models.ParseRiskLevel(sev)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown severity " + sev})
			return
		}
		list := newestFirst(h.alerts.AlertsBySeverity(level), limit)
		c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
		return
	}

	list := h.alerts.RecentAlerts(limit)
	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}

// handleVerdicts pages through persisted verdicts.
// GET /api/v1/verdicts?address=&minLevel=&page=1&limit=50
func (h *APIHandler) handleVerdicts(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	q := db.VerdictQuery{Address: c.Query("address"), Page: page, Limit: limit}
	if lvl := c.Query("minLevel"); lvl != "" {
		level, ok := models.ParseRiskLevel(lvl)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown level " + lvl})
			return
		}
		q.MinLevel = level
	}

	verdicts, total, err := h.store.GetVerdicts(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch verdicts", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       verdicts,
		"totalCount": total,
		"page":       page,
		"limit":      limit,
	})
}

// handleVerifyAudit re-checks the HMAC of every persisted audit entry in the
// period. Bounds are RFC3339 and default to the last 30 days.
// GET /api/v1/audit/verify?start=&end=
func (h *APIHandler) handleVerifyAudit(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	end := time.Now().UTC()
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end: " + err.Error()})
			return
		}
		end = t
	}
	start := end.Add(-defaultReportWindow)
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start: " + err.Error()})
			return
		}
		start = t
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end precedes start"})
		return
	}

	entries, err := h.store.LoadAuditEntries(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit entries", "details": err.Error()})
		return
	}
	valid, invalid := h.engine.Compliance().VerifyAll(entries)
	if len(invalid) > 0 {
		log.Printf("[API] Audit verification found %d tampered entries", len(invalid))
	}
	c.JSON(http.StatusOK, gin.H{
		"start":   start,
		"end":     end,
		"checked": len(entries),
		"valid":   valid,
		"invalid": invalid,
	})
}

// newestFirst reverses an oldest-first list and keeps at most limit entries
func newestFirst(list []alerts.Alert, limit int) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, list[i])
	}
	return out
}

func (h *APIHandler) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// handleHealth returns engine status for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	stats := h.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":            "operational",
		"engine":            "riskgraph",
		"nodes":             stats.Nodes,
		"edges":             stats.Edges,
		"defaultFrameworks": stats.Frameworks,
		"dbConnected":       h.store != nil,
		"streamClients":     h.wsHub.ClientCount(),
	})
}
