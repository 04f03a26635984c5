package patterns

import (
	"math"

	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/pkg/models"
)

// DetectLayering walks simple forward paths from start up to MaxDepth edges.
// A path is retained once it has at least MinHops nodes and its last edge
// stays within VarianceThreshold of the previous edge amount x RetentionFactor.
func (d *Detector) DetectLayering(g *graph.Graph, start string) models.LayeringResult {
	res := models.LayeringResult{
		PatternType: models.PatternLayering,
		Chains:      []models.LayeringChain{},
	}
	if !g.HasNode(start) {
		return res
	}

	onPath := map[string]bool{start: true}

	var walk func(current string, path []string, depth int, prevAmount float64)
	walk = func(current string, path []string, depth int, prevAmount float64) {
		if depth >= d.cfg.MaxDepth {
			return
		}
		for _, edge := range g.Successors(current) {
			if onPath[edge.To] {
				continue
			}
			amount := edge.Amount.InexactFloat64()

			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			next = append(next, edge.To)

			if len(next) >= d.cfg.MinHops && d.withinRetention(amount, prevAmount) {
				res.Chains = append(res.Chains, models.LayeringChain{
					Path:            next,
					Hops:            len(next),
					AmountRetention: retention(amount, prevAmount),
					RiskScore:       layeringRisk(len(next)),
				})
			}

			onPath[edge.To] = true
			walk(edge.To, next, depth+1, amount)
			delete(onPath, edge.To)
		}
	}
	walk(start, []string{start}, 0, 0)

	for _, c := range res.Chains {
		res.MaxRiskScore = math.Max(res.MaxRiskScore, c.RiskScore)
	}
	return res
}

func (d *Detector) withinRetention(amount, prevAmount float64) bool {
	expected := prevAmount * d.cfg.RetentionFactor
	if expected <= 0 {
		return false
	}
	return math.Abs(amount-expected)/expected < d.cfg.VarianceThreshold
}

func retention(amount, prevAmount float64) float64 {
	if prevAmount == 0 {
		return 0
	}
	return amount / prevAmount
}

// layeringRisk is 15 per hop, x1.5 beyond five hops, capped at 100
func layeringRisk(hops int) float64 {
	risk := 15 * float64(hops)
	if hops > 5 {
		risk *= 1.5
	}
	return capScore(risk)
}
