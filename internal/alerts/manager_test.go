package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/riskgraph/pkg/models"
)

func verdict(level models.RiskLevel, score int) models.RiskVerdict {
	return models.RiskVerdict{
		AnalysisID: "an-1",
		TxHash:     "tx-1",
		RiskScore:  score,
		RiskLevel:  level,
		Compliance: models.ComplianceResult{
			Compliant:  false,
			Violations: []models.ComplianceViolation{{RuleID: "BSA-001"}},
		},
	}
}

func TestVerdictsBelowMinimumAreIgnored(t *testing.T) {
	m := NewManager(models.RiskHigh, nil)

	require.NoError(t, m.PublishVerdict(context.Background(), verdict(models.RiskMedium, 45)))
	assert.Empty(t, m.RecentAlerts(0))

	require.NoError(t, m.PublishVerdict(context.Background(), verdict(models.RiskCritical, 90)))
	alerts := m.RecentAlerts(0)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRegulatoryViolation, alerts[0].AlertType)
	assert.Equal(t, "tx-1", alerts[0].TxHash)
	assert.NotEmpty(t, alerts[0].ID)
	assert.Equal(t, "1 compliance violations", alerts[0].Description)
}

func TestBroadcastCallback(t *testing.T) {
	var got []Alert
	m := NewManager(models.RiskLow, func(a Alert) { got = append(got, a) })

	m.EmitAlert(Alert{Severity: models.RiskLow, AlertType: AlertHighRisk, Title: "t"})
	require.Len(t, got, 1)
	assert.Equal(t, "t", got[0].Title)
}

func TestRecentAlertsNewestFirstAndBounded(t *testing.T) {
	m := NewManager(models.RiskLow, nil)
	m.maxHistory = 3
	for _, title := range []string{"a", "b", "c", "d"} {
		m.EmitAlert(Alert{Severity: models.RiskHigh, Title: title})
	}

	recent := m.RecentAlerts(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].Title)
	assert.Equal(t, "c", recent[1].Title)
	assert.Len(t, m.RecentAlerts(0), 3)
}

func TestAlertsBySeverity(t *testing.T) {
	m := NewManager(models.RiskLow, nil)
	m.EmitAlert(Alert{Severity: models.RiskMedium})
	m.EmitAlert(Alert{Severity: models.RiskCritical})

	assert.Len(t, m.AlertsBySeverity(models.RiskHigh), 1)
	assert.Len(t, m.AlertsBySeverity(models.RiskLow), 2)
}

func TestWebhookDeliveryRespectsSeverity(t *testing.T) {
	var mu sync.Mutex
	var received []Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		var a Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		mu.Lock()
		received = append(received, a)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewManager(models.RiskLow, nil)
	m.RegisterWebhook("siem", srv.URL, models.RiskHigh, map[string]string{"X-Token": "secret"})

	m.EmitAlert(Alert{Severity: models.RiskMedium, Title: "skipped"})
	m.EmitAlert(Alert{Severity: models.RiskCritical, Title: "delivered"})
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "delivered", received[0].Title)

	m.RemoveWebhook("siem")
	m.EmitAlert(Alert{Severity: models.RiskCritical})
	m.Wait()
	assert.Len(t, received, 1)
}
