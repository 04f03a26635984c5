package attribution

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/riskgraph/pkg/models"
)

const (
	tornadoAddr = "0x12D66f87A04A9E220743712cE6d9bB1B5616B8Fc"
	p2pkhA      = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
	p2pkhB      = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	p2shAddr    = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"
	p2wpkhAddr  = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

func tr(from, to, amount string, ts int64, hash string) models.Transfer {
	return models.Transfer{From: from, To: to, Amount: decimal.RequireFromString(amount), Timestamp: ts, Hash: hash}
}

func newIntel(opts ...Option) *Intelligence {
	return NewIntelligence(NewEntityDB(DefaultEntities()), opts...)
}

type fixedHeuristic struct {
	name    string
	conf    float64
	related []string
}

func (f fixedHeuristic) Name() string { return f.name }
func (f fixedHeuristic) Evaluate(Input) Evidence {
	return Evidence{Method: f.name, Confidence: f.conf, Related: f.related}
}

func TestParseBlockchain(t *testing.T) {
	b, err := ParseBlockchain("ethereum")
	require.NoError(t, err)
	assert.Equal(t, Ethereum, b)

	b, err = ParseBlockchain("BTC")
	require.NoError(t, err)
	assert.Equal(t, Bitcoin, b)

	_, err = ParseBlockchain("dogecoin")
	assert.ErrorIs(t, err, ErrUnknownBlockchain)

	assert.True(t, Polygon.IsEVM())
	assert.False(t, Solana.IsEVM())
}

func TestDirectEntityMatch(t *testing.T) {
	in := newIntel()
	res := in.Attribute(tornadoAddr, Ethereum, nil)

	assert.Equal(t, "tornado_cash_mixer", res.EntityMatch)
	require.NotNil(t, res.Entity)
	assert.Equal(t, models.RiskCritical, res.Entity.RiskTier)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, []string{MethodDirectMatch, MethodAddressFormat}, res.Methods)
	assert.Empty(t, res.ClusterID)

	assert.InDelta(t, 95.0, RiskScore(res, models.CrossChainAnalysis{}), 1e-9)
}

func TestCommonInputOwnershipCluster(t *testing.T) {
	sample := []models.Transfer{
		tr("A", "X", "1", 10, "h1"),
		tr("B", "X", "2", 10, "h1"),
	}
	res := newIntel().Attribute("A", Ethereum, sample)

	assert.Equal(t, 0.6, res.Confidence)
	assert.Equal(t, []string{"B"}, res.RelatedAddresses)
	assert.Equal(t, []string{MethodCommonInputOwnership}, res.Methods)
	assert.Len(t, res.ClusterID, 16)
	assert.Equal(t, ClusterID("A", Ethereum), res.ClusterID)
	assert.InDelta(t, 60.0, RiskScore(res, models.CrossChainAnalysis{}), 1e-9)
}

func TestNoEvidenceMeansNoCluster(t *testing.T) {
	res := newIntel().Attribute("lonely", Solana, nil)

	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.ClusterID)
	assert.Empty(t, res.Methods)
	assert.Empty(t, res.RiskIndicators)
	assert.Zero(t, RiskScore(res, models.CrossChainAnalysis{}))
}

func TestEvidenceFloorAndFusionCap(t *testing.T) {
	in := newIntel(WithHeuristics(
		fixedHeuristic{name: "weak", conf: 0.25, related: []string{"W"}},
		fixedHeuristic{name: "floor", conf: 0.3, related: []string{"F"}},
		fixedHeuristic{name: "strong", conf: 0.9, related: []string{"S", "F"}},
	))
	res := in.Attribute("A", Tron, nil)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.Equal(t, []string{"F", "S"}, res.RelatedAddresses)
	assert.Equal(t, []string{"floor", "strong"}, res.Methods)

	capped := newIntel(WithHeuristics(
		fixedHeuristic{name: "a", conf: 0.95},
		fixedHeuristic{name: "b", conf: 0.99},
	)).Attribute("A", Tron, nil)
	assert.Equal(t, 0.9, capped.Confidence)
}

func TestChangeAddressHeuristic(t *testing.T) {
	sample := []models.Transfer{
		tr(p2pkhA, p2shAddr, "0.5", 100, "pay"),
		tr(p2pkhA, p2pkhB, "0.01234567", 100, "pay"),
	}

	ev := ChangeAddress{}.Evaluate(Input{Address: p2pkhA, Chain: Bitcoin, Sample: sample})
	assert.Equal(t, 0.55, ev.Confidence)
	assert.Equal(t, []string{p2pkhB}, ev.Related)

	ev = ChangeAddress{}.Evaluate(Input{Address: p2pkhA, Chain: Ethereum, Sample: sample})
	assert.Equal(t, 0.4, ev.Confidence)

	mixed := []models.Transfer{
		tr(p2pkhA, p2shAddr, "0.5", 100, "pay"),
		tr(p2pkhA, p2wpkhAddr, "0.01234567", 100, "pay"),
	}
	ev = ChangeAddress{}.Evaluate(Input{Address: p2pkhA, Chain: Bitcoin, Sample: mixed})
	assert.Equal(t, 0.4, ev.Confidence)
}

func TestTemporalClustering(t *testing.T) {
	sample := []models.Transfer{
		tr("P", "A", "3", 0, "t1"),
		tr("Q", "A", "7", 30, "t2"),
		tr("R", "A", "9", 5000, "t3"),
	}
	ev := TemporalClustering{Window: 60}.Evaluate(Input{Address: "A", Sample: sample})
	assert.Equal(t, 0.5, ev.Confidence)
	assert.Equal(t, []string{"P", "Q"}, ev.Related)
}

func TestAmountCorrelation(t *testing.T) {
	sample := []models.Transfer{
		tr("X", "A", "100", 1, "in"),
		tr("A", "Y", "99.5", 2, "out"),
		tr("A", "Z", "40", 3, "other"),
	}
	ev := AmountCorrelation{Tolerance: 0.01}.Evaluate(Input{Address: "A", Sample: sample})
	assert.Equal(t, 0.3, ev.Confidence)
	assert.Equal(t, []string{"X", "Y"}, ev.Related)
}

func TestBehavioralIndicators(t *testing.T) {
	sample := []models.Transfer{
		tr("A", "C1", "1000", 0, "b1"),
		tr("A", "C2", "1000", 600, "b2"),
		tr("A", "C3", "1000", 1200, "b3"),
		tr("A", "tornado-relay", "2000", 1800, "b4"),
	}
	res := newIntel(WithHeuristics()).Attribute("A", Cardano, sample)
	assert.Equal(t, []string{IndicatorRoundAmounts, IndicatorRegularTiming, IndicatorMixing}, res.RiskIndicators)
	assert.InDelta(t, 30.0, RiskScore(res, models.CrossChainAnalysis{}), 1e-9)
}

func TestMixerEntityCounterparty(t *testing.T) {
	sample := []models.Transfer{tr("A", tornadoAddr, "1.337", 0, "m")}
	res := newIntel().Attribute("A", Ethereum, sample)
	assert.Contains(t, res.RiskIndicators, IndicatorMixing)
}

func TestBitcoinMetadata(t *testing.T) {
	assert.Equal(t, ScriptP2PKH, ScriptType(p2pkhA))
	assert.Equal(t, ScriptP2SH, ScriptType(p2shAddr))
	assert.Equal(t, ScriptP2WPKH, ScriptType(p2wpkhAddr))
	assert.Equal(t, ScriptUnknown, ScriptType("not-an-address"))

	sample := []models.Transfer{
		tr("S1", p2pkhA, "0.1", 1, "r1"),
		tr("S2", p2pkhA, "0.2", 2, "r2"),
	}
	res := newIntel(WithHeuristics()).Attribute(p2pkhA, Bitcoin, sample)
	assert.Equal(t, []string{MethodScriptType, MethodAddressReuse}, res.Methods)
}

func TestClusterIDDependsOnChain(t *testing.T) {
	a := ClusterID("addr", Ethereum)
	b := ClusterID("addr", BSC)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ClusterID("addr", Ethereum))
}

func bridgeBurst(bridge string, n int, gap int64, amount func(i int) string) []models.Transfer {
	out := make([]models.Transfer, n)
	for i := 0; i < n; i++ {
		out[i] = tr("W", bridge, amount(i), int64(i)*gap, fmt.Sprintf("%s-%d", bridge, i))
	}
	return out
}

func TestCrossChainFlows(t *testing.T) {
	in := newIntel()

	split := bridgeBurst("0xBridgeRouter", 6, 60, func(int) string { return "100" })
	cc := in.DetectCrossChainFlows("W", split)
	require.Len(t, cc.DetectedFlows, 1)
	flow := cc.DetectedFlows[0]
	assert.Equal(t, 70.0, flow.RiskScore)
	assert.True(t, flow.Suspicious)
	assert.Equal(t, PatternAmountSplitting+","+PatternRapidBridging, flow.PatternType)
	assert.True(t, decimal.NewFromInt(600).Equal(flow.TotalVolume))
	assert.Equal(t, 1, cc.TotalBridgesUsed)
	assert.Equal(t, 70.0, cc.HighestRiskScore)

	few := bridgeBurst("wormhole-gw", 5, 60, func(int) string { return "100" })
	cc = in.DetectCrossChainFlows("W", few)
	assert.Empty(t, cc.DetectedFlows)
	assert.Equal(t, 1, cc.TotalBridgesUsed)

	slow := bridgeBurst("arbitrum-inbox", 21, 3600, func(i int) string { return fmt.Sprint(100 * (i + 1)) })
	cc = in.DetectCrossChainFlows("W", slow)
	assert.Empty(t, cc.DetectedFlows)
	assert.Equal(t, 1, cc.TotalBridgesUsed)
	assert.Zero(t, cc.HighestRiskScore)

	assert.Zero(t, in.DetectCrossChainFlows("someone-else", split).TotalBridgesUsed)

	mixed := append(bridgeBurst("0xBridgeRouter", 6, 60, func(int) string { return "100" }),
		bridgeBurst("optimism-gateway", 2, 60, func(int) string { return "5" })...)
	cc = in.DetectCrossChainFlows("W", mixed)
	assert.Equal(t, 2, cc.TotalBridgesUsed)
	assert.Len(t, cc.DetectedFlows, 1)

	nonBridge := bridgeBurst("plain-wallet", 10, 1, func(int) string { return "1" })
	assert.Zero(t, in.DetectCrossChainFlows("W", nonBridge).TotalBridgesUsed)
}

func TestRiskScoreBridgeFloor(t *testing.T) {
	res := models.AttributionResult{}
	assert.Equal(t, 70.0, RiskScore(res, models.CrossChainAnalysis{HighestRiskScore: 70}))
}
