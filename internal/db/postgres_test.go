package db

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/internal/compliance"
	"github.com/rawblock/riskgraph/pkg/models"
)

func TestVerdictQueryNormalize(t *testing.T) {
	q := VerdictQuery{Page: 0, Limit: 10000}.normalize()
	if q.Page != 1 || q.Limit != 50 {
		t.Fatalf("expected page 1 limit 50, got page %d limit %d", q.Page, q.Limit)
	}

	q = VerdictQuery{Page: 3, Limit: 20}.normalize()
	if q.Page != 3 || q.Limit != 20 {
		t.Errorf("valid paging should be kept, got page %d limit %d", q.Page, q.Limit)
	}
}

func TestLevelsAtOrAbove(t *testing.T) {
	if got := levelsAtOrAbove(""); len(got) != 4 {
		t.Errorf("empty minimum should select all levels, got %v", got)
	}
	got := levelsAtOrAbove(models.RiskHigh)
	if strings.Join(got, ",") != "HIGH,CRITICAL" {
		t.Errorf("expected HIGH,CRITICAL, got %v", got)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"audit_entries", "risk_verdicts"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema is missing table %s", table)
		}
	}
}

func TestAuditPayloadColumnIsText(t *testing.T) {
	start := strings.Index(schemaSQL, "CREATE TABLE IF NOT EXISTS audit_entries")
	end := strings.Index(schemaSQL[start:], ");")
	table := schemaSQL[start : start+end]
	if !strings.Contains(table, "payload     TEXT NOT NULL") {
		t.Errorf("audit payload must be stored as TEXT:\n%s", table)
	}
	if strings.Contains(table, "JSONB") {
		t.Errorf("audit_entries must not use JSONB:\n%s", table)
	}
}

func TestStoredAuditEntryStillVerifies(t *testing.T) {
	eval, err := compliance.NewEvaluator([]byte("db-secret"),
		compliance.WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 987654321, time.UTC) }))
	if err != nil {
		t.Fatal(err)
	}
	tx := models.Transaction{Transfer: models.Transfer{
		From:   "A",
		To:     "B",
		Amount: decimal.RequireFromString("25000"),
		Hash:   "h1",
	}}
	if _, err := eval.Evaluate(tx, compliance.DefaultFrameworks); err != nil {
		t.Fatal(err)
	}
	entry := eval.Entries()[0]

	// pgx hands timestamptz back in the session zone
	berlin := time.FixedZone("CET", 3600)
	row := auditEntryFromRow(entry.ID, entry.Timestamp.In(berlin), entry.EventType,
		entry.Compliant, string(entry.Payload), entry.Hash)
	if !eval.Verify(row) {
		t.Fatalf("entry read back from a row should verify: %+v", row)
	}

	var generic any
	if err := json.Unmarshal(entry.Payload, &generic); err != nil {
		t.Fatal(err)
	}
	reencoded, err := json.MarshalIndent(generic, "", " ")
	if err != nil {
		t.Fatal(err)
	}
	jsonb := auditEntryFromRow(entry.ID, entry.Timestamp, entry.EventType,
		entry.Compliant, string(reencoded), entry.Hash)
	if eval.Verify(jsonb) {
		t.Error("a re-encoded payload must not verify")
	}
}
