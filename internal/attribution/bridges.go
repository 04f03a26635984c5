package attribution

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Cross-chain bridge flow analysis
//
// Transfers are grouped by destination when the destination looks like a
// bridge or L2 gateway. A group is analysed once it exceeds the rapid-usage
// threshold; its score adds up evidence of amount splitting, rapid-fire
// bridging and sheer frequency. Only flows scoring above 50 are reported as
// suspicious. Every bridge the address used counts towards TotalBridgesUsed,
// including those below the threshold.

const (
	PatternAmountSplitting   = "AMOUNT_SPLITTING"
	PatternRapidBridging     = "RAPID_BRIDGING"
	PatternHighFrequencyFlow = "HIGH_FREQUENCY_BRIDGING"
)

// BridgeKeywords are matched against the lower-cased destination address
var BridgeKeywords = []string{
	"bridge", "portal", "wormhole", "multichain", "anyswap",
	"polygon", "arbitrum", "optimism", "avalanche",
}

const (
	rapidUsageThreshold  = 5
	highFrequencyCount   = 20
	rapidIntervalSeconds = 300
	splitSimilarity      = 0.95
	splitTolerance       = 0.05
	suspiciousBridgeRisk = 50
)

// IsBridgeAddress reports whether addr matches a bridge keyword
func IsBridgeAddress(addr string) bool {
	return containsKeyword(addr, BridgeKeywords)
}

// DetectCrossChainFlows analyses the bridge deposits addr made in sample
func (in *Intelligence) DetectCrossChainFlows(addr string, sample []models.Transfer) models.CrossChainAnalysis {
	res := models.CrossChainAnalysis{DetectedFlows: []models.BridgeFlow{}}

	groups := make(map[string][]models.Transfer)
	for _, t := range sample {
		if t.From == addr && IsBridgeAddress(t.To) {
			groups[t.To] = append(groups[t.To], t)
		}
	}

	bridges := make([]string, 0, len(groups))
	for b := range groups {
		bridges = append(bridges, b)
	}
	sort.Strings(bridges)

	for _, bridge := range bridges {
		res.TotalBridgesUsed++
		txs := groups[bridge]
		if len(txs) <= rapidUsageThreshold {
			continue
		}

		flow := analyseBridgeFlow(bridge, txs)
		if flow.Suspicious {
			res.DetectedFlows = append(res.DetectedFlows, flow)
			res.HighestRiskScore = math.Max(res.HighestRiskScore, flow.RiskScore)
		}
	}
	return res
}

func analyseBridgeFlow(bridge string, txs []models.Transfer) models.BridgeFlow {
	flow := models.BridgeFlow{
		BridgeAddress:    bridge,
		TransactionCount: len(txs),
		TotalVolume:      decimal.Zero,
	}

	amounts := make([]float64, len(txs))
	times := make([]int64, len(txs))
	for i, t := range txs {
		amounts[i] = t.Amount.InexactFloat64()
		times[i] = t.Timestamp
		flow.TotalVolume = flow.TotalVolume.Add(t.Amount)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	flow.SimilarityRatio = amountSimilarity(amounts)
	flow.AvgIntervalSeconds = meanInterval(times)

	var patterns []string
	risk := 0.0
	if flow.SimilarityRatio > splitSimilarity {
		risk += 40
		patterns = append(patterns, PatternAmountSplitting)
	}
	if flow.AvgIntervalSeconds < rapidIntervalSeconds {
		risk += 30
		patterns = append(patterns, PatternRapidBridging)
	}
	if len(txs) > highFrequencyCount {
		risk += 20
		patterns = append(patterns, PatternHighFrequencyFlow)
	}

	flow.RiskScore = math.Min(risk, 100)
	flow.PatternType = strings.Join(patterns, ",")
	flow.Suspicious = flow.RiskScore > suspiciousBridgeRisk
	return flow
}

// amountSimilarity needs at least two amounts and a positive mean, else 0
func amountSimilarity(amounts []float64) float64 {
	if len(amounts) < 2 {
		return 0
	}
	sum := 0.0
	for _, a := range amounts {
		sum += a
	}
	mean := sum / float64(len(amounts))
	if mean <= 0 {
		return 0
	}
	similar := 0
	for _, a := range amounts {
		if math.Abs(a-mean)/mean < splitTolerance {
			similar++
		}
	}
	return float64(similar) / float64(len(amounts))
}

func meanInterval(sorted []int64) float64 {
	if len(sorted) < 2 {
		return 0
	}
	return float64(sorted[len(sorted)-1]-sorted[0]) / float64(len(sorted)-1)
}
