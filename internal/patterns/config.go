package patterns

// Config holds the detector thresholds. The zero value is not useful; start
// from DefaultConfig.
type Config struct {
	// Layering
	MaxDepth          int     // DFS depth bound in edges
	MinHops           int     // minimum path node count for a retained chain
	VarianceThreshold float64 // max relative deviation from the expected amount
	RetentionFactor   float64 // expected amount = previous amount x factor

	// Smurfing
	SmurfMinTransactions     int
	SmurfSimilarityThreshold float64
	SmurfAmountTolerance     float64
	SmurfWindow              int64 // seconds

	// Clustering
	MixerKeywords   []string
	MixerMultiplier float64

	// Round-tripping
	MaxCycleLength int
	MaxCycles      int
	MaxSearchSteps int // DFS expansions per query, 0 disables the bound
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		MaxDepth:          5,
		MinHops:           3,
		VarianceThreshold: 0.10,
		RetentionFactor:   0.95,

		SmurfMinTransactions:     10,
		SmurfSimilarityThreshold: 0.95,
		SmurfAmountTolerance:     0.05,
		SmurfWindow:              86400,

		MixerKeywords:   []string{"tornado", "mixer", "tumbler"},
		MixerMultiplier: 2.5,

		MaxCycleLength: 10,
		MaxCycles:      1000,
		MaxSearchSteps: 100000,
	}
}
