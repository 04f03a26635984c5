package attribution

import (
	"math"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Attribution & Clustering Intelligence
//
// Attribution answers "who controls this address?" in two stages:
//   1. Direct match against the entity database (confidence 0.95)
//   2. Otherwise, the heuristic panel: each heuristic contributes evidence,
//      evidence below the confidence floor is discarded, and the survivors
//      are fused into one cluster with confidence = min(mean, 0.9)
//
// Behavioral indicators and on-chain metadata are added in both cases.
// Results depend only on the address, the entity database and the sample.

const (
	directMatchConfidence = 0.95
	minEvidenceConfidence = 0.3
	maxFusedConfidence    = 0.9
	indicatorWeight       = 10
)

// Intelligence attributes addresses using an entity database and a
// heuristic panel
type Intelligence struct {
	entities      *EntityDB
	heuristics    []Heuristic
	mixerKeywords []string
}

type Option func(*Intelligence)

// WithHeuristics replaces the default heuristic panel
func WithHeuristics(h ...Heuristic) Option {
	return func(in *Intelligence) { in.heuristics = h }
}

// WithMixerKeywords replaces the mixer name keywords
func WithMixerKeywords(keywords []string) Option {
	return func(in *Intelligence) { in.mixerKeywords = keywords }
}

// NewIntelligence creates an attribution engine over db
func NewIntelligence(db *EntityDB, opts ...Option) *Intelligence {
	in := &Intelligence{
		entities:      db,
		heuristics:    DefaultHeuristics(),
		mixerKeywords: []string{"tornado", "mixer", "tumbler"},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Entities returns the entity database
func (in *Intelligence) Entities() *EntityDB {
	return in.entities
}

// Attribute attributes addr on chain from the transfers in sample
func (in *Intelligence) Attribute(addr string, chain Blockchain, sample []models.Transfer) models.AttributionResult {
	res := models.AttributionResult{
		Address:          addr,
		Blockchain:       string(chain),
		RelatedAddresses: []string{},
		Methods:          []string{},
	}

	if profile, ok := in.entities.Lookup(addr); ok {
		p := profile
		res.EntityMatch = p.ID
		res.Entity = &p
		res.Confidence = directMatchConfidence
		res.Methods = append(res.Methods, MethodDirectMatch)
	} else {
		in.fuse(&res, Input{Address: addr, Chain: chain, Sample: sample})
	}

	res.RiskIndicators = in.behavioralIndicators(addr, sample)
	res.Methods = append(res.Methods, metadataMethods(addr, chain, sample)...)
	return res
}

func (in *Intelligence) fuse(res *models.AttributionResult, input Input) {
	related := make(map[string]bool)
	total := 0.0
	kept := 0

	for _, h := range in.heuristics {
		ev := h.Evaluate(input)
		if ev.Confidence < minEvidenceConfidence {
			continue
		}
		kept++
		total += ev.Confidence
		res.Methods = append(res.Methods, ev.Method)
		for _, r := range ev.Related {
			if r != input.Address {
				related[r] = true
			}
		}
	}
	if kept == 0 {
		return
	}

	res.Confidence = math.Min(total/float64(kept), maxFusedConfidence)
	res.RelatedAddresses = sortedKeys(related)
	res.ClusterID = ClusterID(input.Address, input.Chain)
}

// ClusterID derives a stable 16-hex-char cluster identifier
func ClusterID(addr string, chain Blockchain) string {
	h := chainhash.HashH([]byte(addr + ":" + string(chain)))
	return h.String()[:16]
}

// RiskScore turns an attribution and its bridge analysis into a 0-100 score.
// Entity matches score by tier x confidence, heuristic clusters by
// confidence x 100; each behavioral indicator adds 10; the bridge score acts
// as a floor.
func RiskScore(res models.AttributionResult, bridges models.CrossChainAnalysis) float64 {
	score := 0.0
	switch {
	case res.Entity != nil:
		score = TierScore(res.Entity.RiskTier) * res.Confidence
	case res.ClusterID != "":
		score = res.Confidence * 100
	}
	score += indicatorWeight * float64(len(res.RiskIndicators))
	score = math.Max(score, bridges.HighestRiskScore)
	return math.Max(0, math.Min(score, 100))
}

func containsKeyword(addr string, keywords []string) bool {
	lower := strings.ToLower(addr)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

