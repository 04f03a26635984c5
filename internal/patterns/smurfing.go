package patterns

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/pkg/models"
)

// DetectSmurfing inspects the outgoing transfers of addr that fall inside
// the SmurfWindow ending at the latest outgoing timestamp. Fewer than
// SmurfMinTransactions transfers is never a detection, whatever the amounts.
func (d *Detector) DetectSmurfing(g *graph.Graph, addr string) models.SmurfingResult {
	res := models.SmurfingResult{
		PatternType: models.PatternSmurfing,
		TotalAmount: decimal.Zero,
	}

	out := g.Successors(addr)
	if len(out) == 0 {
		return res
	}

	latest := out[0].Timestamp
	for _, t := range out[1:] {
		if t.Timestamp > latest {
			latest = t.Timestamp
		}
	}
	cutoff := latest - d.cfg.SmurfWindow

	amounts := make([]float64, 0, len(out))
	for _, t := range out {
		if d.cfg.SmurfWindow > 0 && t.Timestamp < cutoff {
			continue
		}
		amounts = append(amounts, t.Amount.InexactFloat64())
		res.TotalAmount = res.TotalAmount.Add(t.Amount)
	}
	res.TransactionCount = len(amounts)

	if len(amounts) < d.cfg.SmurfMinTransactions {
		return res
	}

	res.SimilarityRatio = similarityRatio(amounts, d.cfg.SmurfAmountTolerance)
	if res.SimilarityRatio >= d.cfg.SmurfSimilarityThreshold {
		res.Detected = true
		res.RiskScore = capScore(res.SimilarityRatio * float64(len(amounts)) * 10)
	}
	return res
}

// similarityRatio is the fraction of amounts within tolerance of their mean,
// measured relative to the mean. A non-positive mean yields 0.
func similarityRatio(amounts []float64, tolerance float64) float64 {
	if len(amounts) == 0 {
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
		if math.Abs(a-mean)/mean < tolerance {
			similar++
		}
	}
	return float64(similar) / float64(len(amounts))
}
