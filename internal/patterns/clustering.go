package patterns

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/pkg/models"
)

// DetectClusters groups addrs into weakly connected components of their
// induced subgraph. Only components with more than one member are reported.
func (d *Detector) DetectClusters(g *graph.Graph, addrs []string) models.ClusterResult {
	res := models.ClusterResult{
		PatternType: models.PatternClustering,
		Clusters:    []models.AddressCluster{},
	}

	sub := g.InducedSubgraph(addrs)
	ce := NewComponentEngine()
	for _, addr := range sub.Addresses() {
		ce.Add(addr)
	}
	edges := sub.Edges()
	for _, e := range edges {
		ce.Union(e.From, e.To)
	}

	volume := make(map[string]decimal.Decimal)
	for _, e := range edges {
		root := ce.Find(e.From)
		volume[root] = volume[root].Add(e.Amount)
	}

	for _, members := range ce.Components() {
		if len(members) < 2 {
			continue
		}
		hasMixer := false
		for _, m := range members {
			if d.IsMixerAddress(m) {
				hasMixer = true
				break
			}
		}
		risk := float64(len(members)) * 5
		if hasMixer {
			risk *= d.cfg.MixerMultiplier
		}

		cluster := models.AddressCluster{
			Addresses:   members,
			Size:        len(members),
			TotalVolume: volume[ce.Find(members[0])],
			HasMixer:    hasMixer,
			RiskScore:   capScore(risk),
		}
		res.Clusters = append(res.Clusters, cluster)
		res.MaxClusterSize = max(res.MaxClusterSize, cluster.Size)
		res.MaxRiskScore = math.Max(res.MaxRiskScore, cluster.RiskScore)
	}
	res.TotalClusters = len(res.Clusters)
	return res
}
