package attribution

import (
	"math"
	"sort"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Behavioral indicators
//
// Pattern-of-life signals read from the transfer sample around an address:
//   - ROUND_AMOUNT_PATTERN: most amounts are round figures
//   - REGULAR_TIMING_PATTERN: intervals are near-periodic (scripted activity)
//   - MIXING_SERVICE_INTERACTION: a counterparty is a known or named mixer

const (
	IndicatorRoundAmounts  = "ROUND_AMOUNT_PATTERN"
	IndicatorRegularTiming = "REGULAR_TIMING_PATTERN"
	IndicatorMixing        = "MIXING_SERVICE_INTERACTION"
)

const (
	minBehaviorSample   = 3
	roundAmountShare    = 0.8
	regularityThreshold = 0.8
)

func (in *Intelligence) behavioralIndicators(addr string, sample []models.Transfer) []string {
	events := touching(addr, sample)
	indicators := []string{}

	if len(events) >= minBehaviorSample {
		round := 0
		for _, t := range events {
			if isRoundAmount(t.Amount) {
				round++
			}
		}
		if float64(round)/float64(len(events)) >= roundAmountShare {
			indicators = append(indicators, IndicatorRoundAmounts)
		}

		times := make([]int64, len(events))
		for i, t := range events {
			times[i] = t.Timestamp
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		if computeRegularity(times) >= regularityThreshold {
			indicators = append(indicators, IndicatorRegularTiming)
		}
	}

	for _, t := range events {
		if in.isMixer(counterparty(addr, t)) {
			indicators = append(indicators, IndicatorMixing)
			break
		}
	}
	return indicators
}

func (in *Intelligence) isMixer(addr string) bool {
	if addr == "" {
		return false
	}
	if p, ok := in.entities.Lookup(addr); ok && p.Category == CategoryMixer {
		return true
	}
	return containsKeyword(addr, in.mixerKeywords)
}

// computeRegularity scores how periodic the sorted timestamps are.
// Returns 0.0 (random) to 1.0 (perfectly periodic), as 1 / (1 + CV) of the
// inter-transfer intervals. Fewer than three timestamps score 0.
func computeRegularity(times []int64) float64 {
	if len(times) < 3 {
		return 0
	}

	intervals := make([]float64, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals[i-1] = float64(times[i] - times[i-1])
	}

	sum := 0.0
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))
	if mean <= 0 {
		return 0
	}

	varianceSum := 0.0
	for _, v := range intervals {
		diff := v - mean
		varianceSum += diff * diff
	}
	stddev := math.Sqrt(varianceSum / float64(len(intervals)))

	// CV = σ/μ, lower is more regular
	cv := stddev / mean
	regularity := 1.0 / (1.0 + cv)

	return math.Round(regularity*100) / 100
}
