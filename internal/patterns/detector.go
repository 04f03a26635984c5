package patterns

import (
	"math"
	"strings"
)

// Pattern Detection Engine
//
// Structural money-laundering typologies evaluated over the transaction graph:
//   - Layering: funds hop through a chain of addresses, each hop forwarding
//     roughly a fixed share of what it received
//   - Smurfing: many near-identical outgoing amounts inside a time window
//   - Round-tripping: funds leave an address and come back to it
//   - Clustering: weakly connected groups of addresses, amplified when a
//     mixer is among them
//
// Every detector is total: an unknown address yields an empty finding, never
// an error. Detectors read the graph through a *graph.Graph handed out by
// Store.View, so they always see a consistent snapshot.

// Detector runs the pattern detectors with a fixed configuration
type Detector struct {
	cfg Config
}

// NewDetector creates a detector. Nil keyword lists fall back to the defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.MixerKeywords == nil {
		cfg.MixerKeywords = DefaultConfig().MixerKeywords
	}
	return &Detector{cfg: cfg}
}

// IsMixerAddress reports whether addr contains a mixer keyword, case-insensitively
func (d *Detector) IsMixerAddress(addr string) bool {
	return containsKeyword(addr, d.cfg.MixerKeywords)
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

func capScore(score float64) float64 {
	return math.Min(score, 100)
}
