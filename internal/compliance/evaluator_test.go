package compliance

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/riskgraph/pkg/models"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := NewEvaluator([]byte("test-secret"), opts...)
	require.NoError(t, err)
	return e
}

func txOf(amount string) models.Transaction {
	return models.Transaction{Transfer: models.Transfer{
		From:   "A",
		To:     "B",
		Amount: decimal.RequireFromString(amount),
		Hash:   "tx-" + amount,
	}}
}

func ruleIDs(res models.ComplianceResult) []string {
	ids := make([]string, len(res.Violations))
	for i, v := range res.Violations {
		ids[i] = v.RuleID
	}
	return ids
}

func TestParseFramework(t *testing.T) {
	tests := []struct {
		in   string
		want Framework
	}{
		{"FATF", FATF},
		{"bsa", BSA},
		{"EU_5AMLD", EU5AMLD},
		{"eu-5amld", EU5AMLD},
		{"5AMLD", EU5AMLD},
		{"MiCA", MiCA},
		{"FinCEN", FinCEN},
	}
	for _, tt := range tests {
		got, err := ParseFramework(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFramework("GDPR")
	assert.ErrorIs(t, err, ErrUnknownFramework)

	assert.Equal(t, []Framework{FATF, BSA}, ParseFrameworks([]string{"FATF", "GDPR", "fatf", "BSA"}))
}

func TestEveryFrameworkHasATable(t *testing.T) {
	for _, f := range AllFrameworks {
		_, ok := ruleTables[f]
		assert.True(t, ok, "framework %s has no rule table", f)
	}
	assert.Empty(t, Rules(AUSTRAC))
	assert.Len(t, Rules(FATF), 3)
}

func TestThresholdsAreInclusive(t *testing.T) {
	e := newTestEvaluator(t)

	res, err := e.Evaluate(txOf("10000"), []Framework{BSA})
	require.NoError(t, err)
	assert.False(t, res.Compliant)
	assert.Equal(t, []string{"BSA-001", "BSA-002"}, ruleIDs(res))
	assert.True(t, decimal.Zero.Equal(res.Violations[0].ThresholdExceeded))
	assert.True(t, decimal.NewFromInt(5000).Equal(res.Violations[1].ThresholdExceeded))
	assert.Equal(t, models.RiskCritical, res.RiskLevel)

	res, err = e.Evaluate(txOf("9999.99"), []Framework{BSA})
	require.NoError(t, err)
	assert.Equal(t, []string{"BSA-002"}, ruleIDs(res))
}

func TestBelowEveryThresholdIsCompliant(t *testing.T) {
	e := newTestEvaluator(t)

	res, err := e.Evaluate(txOf("999"), []Framework{FATF, BSA, MiCA})
	require.NoError(t, err)
	assert.True(t, res.Compliant)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.RequiredReports)
	assert.Equal(t, models.RiskLow, res.RiskLevel)
	assert.NotEmpty(t, res.AuditID)
}

func TestZeroThresholdRuleAlwaysFires(t *testing.T) {
	e := newTestEvaluator(t)

	res, err := e.Evaluate(txOf("0"), []Framework{EU5AMLD})
	require.NoError(t, err)
	assert.Equal(t, []string{"5AMLD-002"}, ruleIDs(res))
	assert.Equal(t, models.RiskCritical, res.RiskLevel)
}

func TestHighOnlyViolationsAndReportDeadlines(t *testing.T) {
	e := newTestEvaluator(t)

	res, err := e.Evaluate(txOf("1500"), []Framework{MiCA})
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, res.RiskLevel)
	require.Len(t, res.RequiredReports, 1)
	assert.Equal(t, fixedNow.Add(24*time.Hour), res.RequiredReports[0].Deadline)
	assert.Equal(t, "MICA", res.RequiredReports[0].Framework)
}

func TestAuditTrailIsSignedAndVerifiable(t *testing.T) {
	var hooked []models.AuditEntry
	e := newTestEvaluator(t, WithAuditHook(func(entry models.AuditEntry) {
		hooked = append(hooked, entry)
	}))

	res, err := e.Evaluate(txOf("25000"), DefaultFrameworks)
	require.NoError(t, err)

	entries := e.Entries()
	require.Len(t, entries, 1)
	require.Len(t, hooked, 1)
	entry := entries[0]
	assert.Equal(t, EventComplianceCheck, entry.EventType)
	assert.False(t, entry.Compliant)
	assert.True(t, e.Verify(entry))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(entry.Payload, &payload))
	assert.Equal(t, res.AuditID, payload["auditId"])

	tampered := entry
	tampered.Payload = append([]byte(nil), entry.Payload...)
	tampered.Payload[len(tampered.Payload)-2] ^= 1
	assert.False(t, e.Verify(tampered))

	other, err := NewEvaluator([]byte("other-secret"))
	require.NoError(t, err)
	assert.False(t, other.Verify(entry))
}

func TestAuditMACCoversEnvelope(t *testing.T) {
	e := newTestEvaluator(t)
	_, err := e.Evaluate(txOf("25000"), DefaultFrameworks)
	require.NoError(t, err)
	entry := e.Entries()[0]
	require.True(t, e.Verify(entry))

	flipped := entry
	flipped.Compliant = !entry.Compliant
	assert.False(t, e.Verify(flipped))

	moved := entry
	moved.Timestamp = entry.Timestamp.Add(-48 * time.Hour)
	assert.False(t, e.Verify(moved))

	renamed := entry
	renamed.EventType = "OTHER"
	assert.False(t, e.Verify(renamed))

	reissued := entry
	reissued.ID = "another-id"
	assert.False(t, e.Verify(reissued))

	local := entry
	local.Timestamp = entry.Timestamp.In(time.FixedZone("UTC+5", 5*3600))
	assert.True(t, e.Verify(local))

	precise := newTestEvaluator(t, WithClock(func() time.Time { return fixedNow.Add(123456789) }))
	_, err = precise.Evaluate(txOf("5"), DefaultFrameworks)
	require.NoError(t, err)
	assert.Equal(t, 123456000, precise.Entries()[0].Timestamp.Nanosecond())

	valid, invalid := e.VerifyAll([]models.AuditEntry{entry, flipped, moved})
	assert.Equal(t, 1, valid)
	assert.Equal(t, []string{entry.ID, entry.ID}, invalid)
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	type inner struct {
		Zeta  int `json:"zeta"`
		Alpha int `json:"alpha"`
	}
	out, err := canonicalJSON(struct {
		B inner  `json:"b"`
		A string `json:"a"`
	}{B: inner{Zeta: 1, Alpha: 2}, A: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":{"alpha":2,"zeta":1}}`, string(out))
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := NewEvaluator(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)

	secret, err := RandomSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32)
}

func TestGenerateReport(t *testing.T) {
	clock := fixedNow
	e := newTestEvaluator(t, WithClock(func() time.Time { return clock }))

	_, err := e.Evaluate(txOf("10"), []Framework{BSA})
	require.NoError(t, err)
	clock = fixedNow.Add(time.Hour)
	_, err = e.Evaluate(txOf("20000"), []Framework{BSA})
	require.NoError(t, err)
	clock = fixedNow.Add(48 * time.Hour)
	_, err = e.Evaluate(txOf("30"), []Framework{BSA})
	require.NoError(t, err)

	report, err := e.GenerateReport(fixedNow, fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalEvents)
	assert.Equal(t, 1, report.ViolationsCount)
	assert.Equal(t, 0.5, report.ComplianceRate)
	assert.Len(t, report.ReportHash, 64)

	again, err := e.GenerateReport(fixedNow, fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, report.ReportHash, again.ReportHash)

	empty, err := e.GenerateReport(fixedNow.Add(-48*time.Hour), fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalEvents)
	assert.Zero(t, empty.ComplianceRate)

	_, err = e.GenerateReport(fixedNow, fixedNow.Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestConcurrentEvaluations(t *testing.T) {
	e := newTestEvaluator(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Evaluate(txOf("12000"), DefaultFrameworks)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries := e.Entries()
	assert.Len(t, entries, 20)
	for _, entry := range entries {
		assert.True(t, e.Verify(entry))
	}
}

func TestLevelScore(t *testing.T) {
	assert.Equal(t, 100.0, LevelScore(models.RiskCritical))
	assert.Equal(t, 75.0, LevelScore(models.RiskHigh))
	assert.Equal(t, 50.0, LevelScore(models.RiskMedium))
	assert.Equal(t, 0.0, LevelScore(models.RiskLow))
}
