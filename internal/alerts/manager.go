package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Alert & Webhook System
//
// Verdicts at or above the configured level become alerts. Alerts are:
//   1. Passed to the broadcast callback (the websocket hub)
//   2. Pushed to registered webhook endpoints (Slack, SIEM, case tooling)
//   3. Kept in memory as recent alert history
//
// Webhook delivery is asynchronous and never blocks analysis.

const (
	AlertHighRisk            = "high_risk_transaction"
	AlertRegulatoryViolation = "regulatory_violation"
	AlertKnownEntity         = "known_entity"
)

// Alert is a structured compliance alert
type Alert struct {
	ID          string              `json:"id"`
	Timestamp   time.Time           `json:"timestamp"`
	Severity    models.RiskLevel    `json:"severity"`
	AlertType   string              `json:"alertType"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	TxHash      string              `json:"txHash,omitempty"`
	RiskScore   int                 `json:"riskScore"`
	Flags       []string            `json:"flags,omitempty"`
	Verdict     *models.RiskVerdict `json:"verdict,omitempty"`
}

// WebhookEndpoint is a registered webhook receiver
type WebhookEndpoint struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Enabled     bool              `json:"enabled"`
	Headers     map[string]string `json:"headers,omitempty"`
	MinSeverity models.RiskLevel  `json:"minSeverity"`
}

// Manager handles alert emission and webhook delivery
type Manager struct {
	mu            sync.RWMutex
	minLevel      models.RiskLevel
	webhooks      []WebhookEndpoint
	recentAlerts  []Alert
	maxHistory    int
	httpClient    *http.Client
	alertCallback func(Alert)
	pending       sync.WaitGroup
}

// NewManager creates an alert manager raising alerts for verdicts at or
// above minLevel. broadcastFn may be nil.
func NewManager(minLevel models.RiskLevel, broadcastFn func(Alert)) *Manager {
	return &Manager{
		minLevel:      minLevel,
		webhooks:      make([]WebhookEndpoint, 0),
		recentAlerts:  make([]Alert, 0),
		maxHistory:    1000,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		alertCallback: broadcastFn,
	}
}

// RegisterWebhook adds a webhook endpoint
func (m *Manager) RegisterWebhook(name, url string, minSeverity models.RiskLevel, headers map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.webhooks = append(m.webhooks, WebhookEndpoint{
		Name:        name,
		URL:         url,
		Enabled:     true,
		Headers:     headers,
		MinSeverity: minSeverity,
	})
	log.Printf("[Alert] Registered webhook: %s → %s (min: %s)", name, url, minSeverity)
}

// RemoveWebhook removes a webhook by name
func (m *Manager) RemoveWebhook(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, wh := range m.webhooks {
		if wh.Name == name {
			m.webhooks = append(m.webhooks[:i], m.webhooks[i+1:]...)
			return
		}
	}
}

// PublishVerdict raises an alert when v meets the minimum level
func (m *Manager) PublishVerdict(_ context.Context, v models.RiskVerdict) error {
	if v.RiskLevel.Rank() < m.minLevel.Rank() {
		return nil
	}
	verdict := v
	m.EmitAlert(Alert{
		Severity:    v.RiskLevel,
		AlertType:   alertTypeFor(v),
		Title:       fmt.Sprintf("%s risk transaction (score %d)", v.RiskLevel, v.RiskScore),
		Description: buildDescription(v),
		TxHash:      v.TxHash,
		RiskScore:   v.RiskScore,
		Flags:       v.Flags,
		Verdict:     &verdict,
	})
	return nil
}

// EmitAlert records and distributes an alert
func (m *Manager) EmitAlert(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	m.mu.Lock()
	m.recentAlerts = append(m.recentAlerts, alert)
	if len(m.recentAlerts) > m.maxHistory {
		m.recentAlerts = m.recentAlerts[len(m.recentAlerts)-m.maxHistory:]
	}
	webhooks := make([]WebhookEndpoint, len(m.webhooks))
	copy(webhooks, m.webhooks)
	m.mu.Unlock()

	if m.alertCallback != nil {
		m.alertCallback(alert)
	}

	for _, wh := range webhooks {
		if !wh.Enabled || alert.Severity.Rank() < wh.MinSeverity.Rank() {
			continue
		}
		m.pending.Add(1)
		go func(wh WebhookEndpoint) {
			defer m.pending.Done()
			m.sendWebhook(wh, alert)
		}(wh)
	}

	log.Printf("[Alert] [%s] %s: %s (tx: %s)", alert.Severity, alert.AlertType, alert.Title, alert.TxHash)
}

// Wait blocks until in-flight webhook deliveries finish
func (m *Manager) Wait() {
	m.pending.Wait()
}

// RecentAlerts returns up to limit alerts, most recent first.
// A non-positive limit returns the whole history.
func (m *Manager) RecentAlerts(limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recentAlerts) {
		limit = len(m.recentAlerts)
	}
	start := len(m.recentAlerts) - limit
	result := make([]Alert, limit)
	for i := 0; i < limit; i++ {
		result[i] = m.recentAlerts[start+limit-1-i]
	}
	return result
}

// AlertsBySeverity returns alerts at or above minSeverity, oldest first
func (m *Manager) AlertsBySeverity(minSeverity models.RiskLevel) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filtered := make([]Alert, 0)
	for _, a := range m.recentAlerts {
		if a.Severity.Rank() >= minSeverity.Rank() {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func (m *Manager) sendWebhook(wh WebhookEndpoint, alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		log.Printf("[Webhook] Failed to marshal alert: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		log.Printf("[Webhook] Failed to create request for %s: %v", wh.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for key, val := range wh.Headers {
		req.Header.Set(key, val)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Printf("[Webhook] Failed to send to %s: %v", wh.Name, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("[Webhook] %s returned status %d", wh.Name, resp.StatusCode)
	}
}

func alertTypeFor(v models.RiskVerdict) string {
	switch {
	case !v.Compliance.Compliant:
		return AlertRegulatoryViolation
	case v.Intelligence.EntityMatch != "":
		return AlertKnownEntity
	}
	return AlertHighRisk
}

func buildDescription(v models.RiskVerdict) string {
	var parts []string
	if n := len(v.Compliance.Violations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d compliance violations", n))
	}
	if v.Intelligence.EntityMatch != "" {
		parts = append(parts, "sender attributed to "+v.Intelligence.EntityMatch)
	}
	if len(v.Patterns.RiskFactors) > 0 {
		parts = append(parts, "patterns: "+strings.Join(v.Patterns.RiskFactors, ", "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Transfer %s → %s scored %d", v.FromAddress, v.ToAddress, v.RiskScore)
	}
	return strings.Join(parts, "; ")
}
