package attribution

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Clustering heuristics
//
// Each heuristic inspects the transfer sample around an address and returns
// Evidence: the addresses it believes share an owner with it and how
// confident it is. Heuristics are independent and order-insensitive; the
// Intelligence fuses whatever survives the confidence floor.
//
//   - Common-input-ownership: co-senders of the same transaction
//   - Change address: the odd, non-round output of a two-output payment
//   - Temporal clustering: counterparties that show up in the same bursts
//   - Amount correlation: inbound amounts forwarded almost unchanged

const (
	MethodDirectMatch          = "DIRECT_MATCH"
	MethodCommonInputOwnership = "COMMON_INPUT_OWNERSHIP"
	MethodChangeAddress        = "CHANGE_ADDRESS_DETECTION"
	MethodTemporalClustering   = "TEMPORAL_CLUSTERING"
	MethodAmountCorrelation    = "AMOUNT_CORRELATION"
)

// Input is what a heuristic sees
type Input struct {
	Address string
	Chain   Blockchain
	Sample  []models.Transfer
}

// Evidence is a heuristic's finding. Zero confidence means nothing was found.
type Evidence struct {
	Method     string
	Confidence float64
	Related    []string
}

// Heuristic is a pluggable clustering signal
type Heuristic interface {
	Name() string
	Evaluate(in Input) Evidence
}

// DefaultHeuristics returns the standard panel
func DefaultHeuristics() []Heuristic {
	return []Heuristic{
		CommonInputOwnership{},
		ChangeAddress{},
		TemporalClustering{Window: 60},
		AmountCorrelation{Tolerance: 0.01},
	}
}

// CommonInputOwnership links addresses that co-sign (co-send) a transaction
type CommonInputOwnership struct{}

func (CommonInputOwnership) Name() string { return MethodCommonInputOwnership }

func (h CommonInputOwnership) Evaluate(in Input) Evidence {
	ev := Evidence{Method: h.Name()}
	related := make(map[string]bool)
	shared := 0

	for _, group := range groupByHash(in.Sample) {
		senders := make(map[string]bool)
		for _, t := range group {
			senders[t.From] = true
		}
		if !senders[in.Address] || len(senders) < 2 {
			continue
		}
		shared++
		for s := range senders {
			if s != in.Address {
				related[s] = true
			}
		}
	}

	if shared == 0 {
		return ev
	}
	ev.Confidence = math.Min(0.5+0.1*float64(shared), 0.8)
	ev.Related = sortedKeys(related)
	return ev
}

// ChangeAddress flags the non-round recipient of a two-recipient payment sent
// solely by the address. On Bitcoin a change output sharing the sender's
// script type is stronger evidence.
type ChangeAddress struct{}

func (ChangeAddress) Name() string { return MethodChangeAddress }

func (h ChangeAddress) Evaluate(in Input) Evidence {
	ev := Evidence{Method: h.Name()}
	related := make(map[string]bool)

	for _, group := range groupByHash(in.Sample) {
		totals := make(map[string]decimal.Decimal)
		soleSender := true
		for _, t := range group {
			if t.From != in.Address {
				soleSender = false
				break
			}
			if t.To != in.Address {
				totals[t.To] = totals[t.To].Add(t.Amount)
			}
		}
		if !soleSender || len(totals) != 2 {
			continue
		}

		var round, odd []string
		for addr, amt := range totals {
			if isRoundAmount(amt) {
				round = append(round, addr)
			} else {
				odd = append(odd, addr)
			}
		}
		if len(round) != 1 || len(odd) != 1 {
			continue
		}

		change := odd[0]
		related[change] = true
		conf := 0.4
		if in.Chain == Bitcoin {
			if st := ScriptType(change); st != ScriptUnknown && st == ScriptType(in.Address) {
				conf = 0.55
			}
		}
		ev.Confidence = math.Max(ev.Confidence, conf)
	}

	ev.Related = sortedKeys(related)
	return ev
}

// TemporalClustering links counterparties that transact with the address
// within Window seconds of each other
type TemporalClustering struct {
	Window int64
}

func (TemporalClustering) Name() string { return MethodTemporalClustering }

func (h TemporalClustering) Evaluate(in Input) Evidence {
	ev := Evidence{Method: h.Name()}

	events := touching(in.Address, in.Sample)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	related := make(map[string]bool)
	bursts := 0
	flush := func(burst map[string]bool) {
		if len(burst) < 2 {
			return
		}
		bursts++
		for cp := range burst {
			related[cp] = true
		}
	}

	burst := make(map[string]bool)
	var last int64
	for i, t := range events {
		cp := counterparty(in.Address, t)
		if cp == "" {
			continue
		}
		if i > 0 && t.Timestamp-last > h.Window {
			flush(burst)
			burst = make(map[string]bool)
		}
		burst[cp] = true
		last = t.Timestamp
	}
	flush(burst)

	if bursts == 0 {
		return ev
	}
	ev.Confidence = math.Min(0.4+0.1*float64(bursts), 0.7)
	ev.Related = sortedKeys(related)
	return ev
}

// AmountCorrelation links the address to where it forwards an inbound amount
// nearly unchanged, and to where that amount came from
type AmountCorrelation struct {
	Tolerance float64
}

func (AmountCorrelation) Name() string { return MethodAmountCorrelation }

func (h AmountCorrelation) Evaluate(in Input) Evidence {
	ev := Evidence{Method: h.Name()}

	var inbound, outbound []models.Transfer
	for _, t := range in.Sample {
		switch {
		case t.To == in.Address && t.From != in.Address:
			inbound = append(inbound, t)
		case t.From == in.Address && t.To != in.Address:
			outbound = append(outbound, t)
		}
	}

	related := make(map[string]bool)
	matches := 0
	for _, out := range outbound {
		outAmt := out.Amount.InexactFloat64()
		for _, inb := range inbound {
			inAmt := inb.Amount.InexactFloat64()
			if inAmt <= 0 || inb.Timestamp > out.Timestamp {
				continue
			}
			if math.Abs(outAmt-inAmt)/inAmt <= h.Tolerance {
				related[out.To] = true
				related[inb.From] = true
				matches++
				break
			}
		}
	}

	if matches == 0 {
		return ev
	}
	ev.Confidence = math.Min(0.3+0.05*float64(matches-1), 0.6)
	ev.Related = sortedKeys(related)
	return ev
}

// groupByHash groups transfers by tx hash in order of first appearance.
// Transfers without a hash are ignored.
func groupByHash(sample []models.Transfer) [][]models.Transfer {
	index := make(map[string]int)
	var groups [][]models.Transfer
	for _, t := range sample {
		if t.Hash == "" {
			continue
		}
		i, ok := index[t.Hash]
		if !ok {
			i = len(groups)
			index[t.Hash] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}

func touching(addr string, sample []models.Transfer) []models.Transfer {
	out := make([]models.Transfer, 0, len(sample))
	for _, t := range sample {
		if t.From == addr || t.To == addr {
			out = append(out, t)
		}
	}
	return out
}

// counterparty returns the other end of t, or "" for a self-loop
func counterparty(addr string, t models.Transfer) string {
	switch {
	case t.From == addr && t.To != addr:
		return t.To
	case t.To == addr && t.From != addr:
		return t.From
	}
	return ""
}

// isRoundAmount reports whether a non-zero amount has at most two significant
// digits, e.g. 0.05, 1500 or 25000
func isRoundAmount(d decimal.Decimal) bool {
	if d.IsZero() {
		return false
	}
	digits := strings.ReplaceAll(d.Abs().String(), ".", "")
	digits = strings.Trim(digits, "0")
	return len(digits) <= 2
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
