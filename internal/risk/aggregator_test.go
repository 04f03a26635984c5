package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rawblock/riskgraph/pkg/models"
)

func TestScoreWeights(t *testing.T) {
	got := Score(models.ComponentScores{Compliance: 100, Pattern: 100, Attribution: 100})
	assert.InDelta(t, 100.0, got, 1e-9)

	got = Score(models.ComponentScores{Compliance: 75, Pattern: 0, Attribution: 0})
	assert.InDelta(t, 30.0, got, 1e-9)

	got = Score(models.ComponentScores{Compliance: 0, Pattern: 60, Attribution: 40})
	assert.InDelta(t, 31.0, got, 1e-9)
}

func TestLevelBoundariesAreInclusive(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{39.99, models.RiskLow},
		{40, models.RiskMedium},
		{59.99, models.RiskMedium},
		{60, models.RiskHigh},
		{79.99, models.RiskHigh},
		{80, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.score), "score %v", tt.score)
	}
}

func TestWalletLevels(t *testing.T) {
	assert.Equal(t, models.RiskLow, WalletLevelFor(29.9))
	assert.Equal(t, models.RiskMedium, WalletLevelFor(30))
	assert.Equal(t, models.RiskHigh, WalletLevelFor(50))
	assert.Equal(t, models.RiskCritical, WalletLevelFor(70))
	assert.Equal(t, 45.0, WalletScore(45, 10))
	assert.Equal(t, 100.0, WalletScore(20, 130))
}

func TestConfidenceBounds(t *testing.T) {
	assert.Equal(t, 0.10, Confidence(0))
	assert.Equal(t, 0.5, Confidence(50))
	assert.Equal(t, 0.95, Confidence(100))
}

func TestAggregateFlagsAndSummary(t *testing.T) {
	in := Inputs{
		Tx: models.Transaction{Transfer: models.Transfer{
			From:  "A",
			To:    "B",
			Hash:  "h",
			Flags: []string{"USER_FLAG", "ROUND_TRIPPING"},
		}},
		Compliance: models.ComplianceResult{Compliant: false, RiskLevel: models.RiskHigh},
		Patterns: models.PatternAnalysis{
			OverallRiskScore: 84,
			RiskFactors:      []string{"ROUND_TRIPPING"},
			RoundTripping:    models.RoundTripResult{Cycles: []models.RoundTripCycle{{Path: []string{"A", "B"}, Length: 2}}},
		},
		Attribution:      models.AttributionResult{EntityMatch: "tornado_cash_mixer"},
		AttributionScore: 95,
	}

	v := Aggregate(in)
	// 0.40*75 + 0.35*84 + 0.25*95 = 83.15
	assert.Equal(t, 83, v.RiskScore)
	assert.Equal(t, models.RiskCritical, v.RiskLevel)
	assert.InDelta(t, 0.8315, v.Confidence, 1e-9)
	assert.Equal(t, []string{FlagKnownEntity, FlagRegulatoryViolation, "ROUND_TRIPPING", "USER_FLAG"}, v.Flags)
	assert.True(t, v.Patterns.RoundTrippingDetected)
	assert.False(t, v.Patterns.SmurfingDetected)
	assert.Equal(t, "tornado_cash_mixer", v.Intelligence.EntityMatch)
	assert.Equal(t, "h", v.TxHash)
}

func TestAggregateIsDeterministic(t *testing.T) {
	in := Inputs{
		Compliance:       models.ComplianceResult{Compliant: true, RiskLevel: models.RiskLow},
		Patterns:         models.PatternAnalysis{OverallRiskScore: 12},
		AttributionScore: 8,
	}
	assert.Equal(t, Aggregate(in), Aggregate(in))
	assert.Equal(t, []string{}, Aggregate(in).Flags)
	assert.Equal(t, models.RiskLow, Aggregate(in).RiskLevel)
}

func TestLayeringDetectedNeedsScoreAboveFifty(t *testing.T) {
	weak := Inputs{Patterns: models.PatternAnalysis{Layering: models.LayeringResult{
		Chains:       []models.LayeringChain{{Path: []string{"A", "B", "C"}, RiskScore: 45}},
		MaxRiskScore: 45,
	}}}
	assert.False(t, Aggregate(weak).Patterns.LayeringDetected)

	strong := weak
	strong.Patterns.Layering.MaxRiskScore = 60
	assert.True(t, Aggregate(strong).Patterns.LayeringDetected)

	edge := weak
	edge.Patterns.Layering.MaxRiskScore = 50
	assert.False(t, Aggregate(edge).Patterns.LayeringDetected)
}
