package risk

import (
	"math"
	"sort"

	"github.com/rawblock/riskgraph/internal/compliance"
	"github.com/rawblock/riskgraph/pkg/models"
)

// Risk Aggregator
//
// Combines the three sub-analyses of a transaction into one verdict:
//
//   aggregated = 0.40 x compliance + 0.35 x pattern + 0.25 x attribution
//
// Level thresholds (transaction):
//   CRITICAL (80-100) | HIGH (60-79) | MEDIUM (40-59) | LOW (0-39)
//
// Wallets are scored as the worst of attribution and clustering risk with
// lower thresholds: CRITICAL >= 70, HIGH >= 50, MEDIUM >= 30.

const (
	ComplianceWeight  = 0.40
	PatternWeight     = 0.35
	AttributionWeight = 0.25
)

const (
	FlagRegulatoryViolation = "REGULATORY_VIOLATION"
	FlagKnownEntity         = "KNOWN_ENTITY"
)

// Inputs are the joined sub-analysis results for one transaction
type Inputs struct {
	Tx               models.Transaction
	Compliance       models.ComplianceResult
	Patterns         models.PatternAnalysis
	Attribution      models.AttributionResult
	AttributionScore float64
	CrossChain       models.CrossChainAnalysis
}

// Aggregate builds the verdict for in. Identifiers and timestamps are left
// for the caller to stamp.
func Aggregate(in Inputs) models.RiskVerdict {
	components := models.ComponentScores{
		Compliance:  compliance.LevelScore(in.Compliance.RiskLevel),
		Pattern:     clamp(in.Patterns.OverallRiskScore),
		Attribution: clamp(in.AttributionScore),
	}
	score := Score(components)

	return models.RiskVerdict{
		TxHash:      in.Tx.Hash,
		FromAddress: in.Tx.From,
		ToAddress:   in.Tx.To,
		RiskScore:   int(score),
		RiskLevel:   LevelFor(score),
		Flags:       flags(in),
		Confidence:  Confidence(score),
		Components:  components,
		Compliance:  in.Compliance,
		Patterns: models.PatternSummary{
			LayeringDetected:      in.Patterns.Layering.MaxRiskScore > 50,
			SmurfingDetected:      in.Patterns.Smurfing.Detected,
			RoundTrippingDetected: len(in.Patterns.RoundTripping.Cycles) > 0,
			ClusterCount:          in.Patterns.Clustering.TotalClusters,
			OverallRiskScore:      in.Patterns.OverallRiskScore,
			RiskFactors:           nonNil(in.Patterns.RiskFactors),
		},
		Intelligence: models.AttributionSummary{
			EntityMatch:    in.Attribution.EntityMatch,
			ClusterID:      in.Attribution.ClusterID,
			Confidence:     in.Attribution.Confidence,
			RiskScore:      components.Attribution,
			CrossChainRisk: in.CrossChain.HighestRiskScore,
			RiskIndicators: nonNil(in.Attribution.RiskIndicators),
		},
	}
}

// Score is the weighted sum of the component scores, clamped to [0,100]
func Score(c models.ComponentScores) float64 {
	return clamp(ComplianceWeight*c.Compliance + PatternWeight*c.Pattern + AttributionWeight*c.Attribution)
}

// LevelFor maps a transaction score to its level
func LevelFor(score float64) models.RiskLevel {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	}
	return models.RiskLow
}

// Confidence is score/100 bounded to [0.10, 0.95]
func Confidence(score float64) float64 {
	return math.Max(0.10, math.Min(score/100, 0.95))
}

// WalletScore is the worse of the attribution and cluster scores
func WalletScore(attributionScore, clusterScore float64) float64 {
	return clamp(math.Max(attributionScore, clusterScore))
}

// WalletLevelFor maps a wallet score to its level
func WalletLevelFor(score float64) models.RiskLevel {
	switch {
	case score >= 70:
		return models.RiskCritical
	case score >= 50:
		return models.RiskHigh
	case score >= 30:
		return models.RiskMedium
	}
	return models.RiskLow
}

func flags(in Inputs) []string {
	set := make(map[string]bool)
	for _, f := range in.Tx.Flags {
		if f != "" {
			set[f] = true
		}
	}
	for _, f := range in.Patterns.RiskFactors {
		set[f] = true
	}
	if !in.Compliance.Compliant {
		set[FlagRegulatoryViolation] = true
	}
	if in.Attribution.EntityMatch != "" {
		set[FlagKnownEntity] = true
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func clamp(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
