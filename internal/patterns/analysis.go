package patterns

import (
	"math"
	"sort"

	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/pkg/models"
)

const (
	FactorComplexLayering = "COMPLEX_LAYERING"
	FactorSmurfing        = "SMURFING_PATTERN"
	FactorRoundTripping   = "ROUND_TRIPPING"
)

// Analyze runs every detector for addr. Clustering covers addr and its
// one-hop neighbourhood in both directions. The overall score is the largest
// detector score boosted by 20%, capped at 100.
func (d *Detector) Analyze(g *graph.Graph, addr string) models.PatternAnalysis {
	pa := models.PatternAnalysis{
		Address:       addr,
		Layering:      d.DetectLayering(g, addr),
		Smurfing:      d.DetectSmurfing(g, addr),
		RoundTripping: d.DetectRoundTripping(g, addr),
		Clustering:    d.DetectClusters(g, Neighbourhood(g, addr)),
		RiskFactors:   []string{},
	}

	highest := math.Max(
		math.Max(pa.Layering.MaxRiskScore, pa.Smurfing.RiskScore),
		math.Max(pa.RoundTripping.MaxRiskScore, pa.Clustering.MaxRiskScore),
	)
	pa.OverallRiskScore = capScore(highest * 1.2)

	if pa.Layering.MaxRiskScore > 50 {
		pa.RiskFactors = append(pa.RiskFactors, FactorComplexLayering)
	}
	if pa.Smurfing.Detected {
		pa.RiskFactors = append(pa.RiskFactors, FactorSmurfing)
	}
	if pa.RoundTripping.MaxRiskScore > 40 {
		pa.RiskFactors = append(pa.RiskFactors, FactorRoundTripping)
	}
	return pa
}

// Neighbourhood returns addr plus every direct counterparty, sorted.
// Unknown addresses yield an empty list.
func Neighbourhood(g *graph.Graph, addr string) []string {
	if !g.HasNode(addr) {
		return []string{}
	}
	set := map[string]bool{addr: true}
	for _, e := range g.Successors(addr) {
		set[e.To] = true
	}
	for _, e := range g.Predecessors(addr) {
		set[e.From] = true
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
