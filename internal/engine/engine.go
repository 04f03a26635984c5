package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/riskgraph/internal/attribution"
	"github.com/rawblock/riskgraph/internal/compliance"
	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/internal/patterns"
	"github.com/rawblock/riskgraph/internal/risk"
	"github.com/rawblock/riskgraph/pkg/models"
)

// Risk Engine
//
// Facade over the graph store, the pattern detectors, the attribution
// intelligence and the compliance evaluator. A transaction analysis:
//   1. validates and inserts the transfer into the graph
//   2. runs pattern detection, attribution and compliance concurrently
//   3. joins them in the risk aggregator
//   4. fans the verdict out to publishers (store, stream, alerts)
//
// Publisher and observer failures are logged and never affect the verdict.

// ErrInvalidInput is returned for requests missing an address or carrying a
// negative amount
var ErrInvalidInput = errors.New("invalid input")

// TransferObserver is notified of every transfer accepted into the graph
type TransferObserver interface {
	ObserveTransfer(ctx context.Context, t models.Transfer) error
}

// VerdictPublisher is notified of every transaction verdict
type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, v models.RiskVerdict) error
}

// Engine is safe for concurrent use
type Engine struct {
	graph      *graph.Store
	detector   *patterns.Detector
	intel      *attribution.Intelligence
	compliance *compliance.Evaluator
	frameworks []compliance.Framework
	now        func() time.Time

	observers  []TransferObserver
	publishers []VerdictPublisher

	analyses atomic.Int64
	wallets  atomic.Int64
	started  time.Time
}

type Option func(*Engine)

func WithGraph(s *graph.Store) Option {
	return func(e *Engine) { e.graph = s }
}

func WithDetector(d *patterns.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

func WithIntelligence(in *attribution.Intelligence) Option {
	return func(e *Engine) { e.intel = in }
}

// WithDefaultFrameworks sets the frameworks evaluated when a request names none
func WithDefaultFrameworks(f []compliance.Framework) Option {
	return func(e *Engine) {
		if len(f) > 0 {
			e.frameworks = f
		}
	}
}

func WithTransferObserver(o TransferObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func WithVerdictPublisher(p VerdictPublisher) Option {
	return func(e *Engine) { e.publishers = append(e.publishers, p) }
}

// WithClock overrides time.Now for verdict timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine around evaluator. Unset components get defaults.
func New(evaluator *compliance.Evaluator, opts ...Option) *Engine {
	e := &Engine{
		compliance: evaluator,
		frameworks: compliance.DefaultFrameworks,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.graph == nil {
		e.graph = graph.NewStore()
	}
	if e.detector == nil {
		e.detector = patterns.NewDetector(patterns.DefaultConfig())
	}
	if e.intel == nil {
		e.intel = attribution.NewIntelligence(attribution.NewEntityDB(attribution.DefaultEntities()))
	}
	e.started = e.now()
	return e
}

// Graph exposes the underlying store for read access
func (e *Engine) Graph() *graph.Store {
	return e.graph
}

// Compliance exposes the evaluator
func (e *Engine) Compliance() *compliance.Evaluator {
	return e.compliance
}

func validateTransfer(t models.Transfer) error {
	if strings.TrimSpace(t.From) == "" {
		return fmt.Errorf("%w: from address is required", ErrInvalidInput)
	}
	if strings.TrimSpace(t.To) == "" {
		return fmt.Errorf("%w: to address is required", ErrInvalidInput)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("%w: amount %s is negative", ErrInvalidInput, t.Amount)
	}
	return nil
}

// SubmitTransfer validates t and adds it to the graph. A transfer already
// present with the same hash, endpoints and amount is skipped.
func (e *Engine) SubmitTransfer(ctx context.Context, t models.Transfer) error {
	if err := validateTransfer(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.insert(ctx, t)
	return nil
}

// insert adds t unless it is a known leg and notifies observers.
// Returns false for a skipped duplicate.
func (e *Engine) insert(ctx context.Context, t models.Transfer) bool {
	if !e.graph.AddTransferOnce(t) {
		return false
	}
	for _, o := range e.observers {
		if err := o.ObserveTransfer(ctx, t); err != nil {
			log.Printf("[Engine] Transfer observer failed for %s: %v", t.Hash, err)
		}
	}
	return true
}

// resolveFrameworks parses tags, skipping unknown ones. No tags at all
// selects the defaults.
func (e *Engine) resolveFrameworks(tags []string) []compliance.Framework {
	if len(tags) == 0 {
		return e.frameworks
	}
	return compliance.ParseFrameworks(tags)
}

// DefaultFrameworks returns the frameworks used when a request names none
func (e *Engine) DefaultFrameworks() []string {
	out := make([]string, len(e.frameworks))
	for i, f := range e.frameworks {
		out[i] = string(f)
	}
	return out
}

func chainOf(name string) attribution.Blockchain {
	b, err := attribution.ParseBlockchain(name)
	if err != nil {
		return attribution.Ethereum
	}
	return b
}

// AnalyzeTransaction inserts tx into the graph and scores it
func (e *Engine) AnalyzeTransaction(ctx context.Context, tx models.Transaction, frameworks []string) (models.RiskVerdict, error) {
	if err := validateTransfer(tx.Transfer); err != nil {
		return models.RiskVerdict{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.RiskVerdict{}, err
	}

	fws := e.resolveFrameworks(frameworks)
	chain := chainOf(tx.Blockchain)
	e.insert(ctx, tx.Transfer)

	var (
		pa         models.PatternAnalysis
		attr       models.AttributionResult
		crossChain models.CrossChainAnalysis
		compResult models.ComplianceResult
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.graph.View(func(gr *graph.Graph) {
			pa = e.detector.Analyze(gr, tx.From)
		})
		return nil
	})
	g.Go(func() error {
		sample := e.graph.TransactionContext(tx.From)
		attr = e.intel.Attribute(tx.From, chain, sample)
		crossChain = e.intel.DetectCrossChainFlows(tx.From, sample)
		return nil
	})
	g.Go(func() error {
		res, err := e.compliance.Evaluate(tx, fws)
		if err != nil {
			return fmt.Errorf("compliance evaluation: %w", err)
		}
		compResult = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.RiskVerdict{}, err
	}

	verdict := risk.Aggregate(risk.Inputs{
		Tx:               tx,
		Compliance:       compResult,
		Patterns:         pa,
		Attribution:      attr,
		AttributionScore: attribution.RiskScore(attr, crossChain),
		CrossChain:       crossChain,
	})
	verdict.AnalysisID = uuid.NewString()
	verdict.Timestamp = e.now().UTC()

	e.graph.RaiseRiskScore(tx.From, float64(verdict.RiskScore))
	e.graph.RaiseRiskScore(tx.To, float64(verdict.RiskScore))
	e.analyses.Add(1)

	for _, p := range e.publishers {
		if err := p.PublishVerdict(ctx, verdict); err != nil {
			log.Printf("[Engine] Verdict publisher failed for %s: %v", verdict.AnalysisID, err)
		}
	}

	log.Printf("[Engine] Analysed %s: score=%d level=%s flags=%v", tx.Hash, verdict.RiskScore, verdict.RiskLevel, verdict.Flags)
	return verdict, nil
}

// AnalyzeWallet scores address from its supplied transfer history. Transfers
// without a sender are taken as sent by address. All transfers are inserted
// into the graph before scoring.
func (e *Engine) AnalyzeWallet(ctx context.Context, address, blockchain string, transfers []models.Transfer) (models.WalletVerdict, error) {
	if strings.TrimSpace(address) == "" {
		return models.WalletVerdict{}, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}

	history := make([]models.Transfer, len(transfers))
	for i, t := range transfers {
		if t.From == "" {
			t.From = address
		}
		if err := validateTransfer(t); err != nil {
			return models.WalletVerdict{}, fmt.Errorf("transfer %d: %w", i, err)
		}
		history[i] = t
	}
	if err := ctx.Err(); err != nil {
		return models.WalletVerdict{}, err
	}
	for _, t := range history {
		e.insert(ctx, t)
	}

	chain := chainOf(blockchain)
	involved := involvedAddresses(history)

	var (
		attr       models.AttributionResult
		crossChain models.CrossChainAnalysis
		clusters   models.ClusterResult
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		attr = e.intel.Attribute(address, chain, history)
		crossChain = e.intel.DetectCrossChainFlows(address, history)
		return nil
	})
	g.Go(func() error {
		e.graph.View(func(gr *graph.Graph) {
			clusters = e.detector.DetectClusters(gr, involved)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.WalletVerdict{}, err
	}

	attrScore := attribution.RiskScore(attr, crossChain)
	score := risk.WalletScore(attrScore, clusters.MaxRiskScore)
	level := risk.WalletLevelFor(score)
	e.graph.RaiseRiskScore(address, score)
	e.wallets.Add(1)

	verdict := models.WalletVerdict{
		Address:     address,
		Blockchain:  string(chain),
		RiskScore:   int(score),
		RiskLevel:   level,
		Attribution: attr,
		Clustering: models.ClusterSummary{
			TotalClusters:      clusters.TotalClusters,
			LargestClusterSize: clusters.MaxClusterSize,
			MaxRiskScore:       clusters.MaxRiskScore,
		},
		CrossChain: crossChain,
		Summary:    walletSummary(address, level, attr, clusters, crossChain),
		Timestamp:  e.now().UTC(),
	}
	log.Printf("[Engine] Wallet %s: score=%d level=%s", address, verdict.RiskScore, level)
	return verdict, nil
}

func involvedAddresses(transfers []models.Transfer) []string {
	set := make(map[string]bool)
	for _, t := range transfers {
		set[t.From] = true
		set[t.To] = true
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func walletSummary(address string, level models.RiskLevel, attr models.AttributionResult, clusters models.ClusterResult, cc models.CrossChainAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet %s assessed as %s risk.", address, level)
	if attr.Entity != nil {
		fmt.Fprintf(&b, " Attributed to %s (%s).", attr.Entity.Name, attr.Entity.Category)
	} else if attr.ClusterID != "" {
		fmt.Fprintf(&b, " Clustered with %d related addresses (confidence %.2f).", len(attr.RelatedAddresses), attr.Confidence)
	}
	if clusters.TotalClusters > 0 {
		fmt.Fprintf(&b, " %d transfer clusters, largest %d addresses.", clusters.TotalClusters, clusters.MaxClusterSize)
	}
	if len(cc.DetectedFlows) > 0 {
		fmt.Fprintf(&b, " %d suspicious bridge flows.", len(cc.DetectedFlows))
	}
	if len(attr.RiskIndicators) > 0 {
		fmt.Fprintf(&b, " Indicators: %s.", strings.Join(attr.RiskIndicators, ", "))
	}
	return b.String()
}

// AttributeAddress attributes address from the transactions it took part in,
// as recorded in the graph
func (e *Engine) AttributeAddress(ctx context.Context, address, blockchain string) (models.AttributionResult, error) {
	if strings.TrimSpace(address) == "" {
		return models.AttributionResult{}, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return models.AttributionResult{}, err
	}
	return e.intel.Attribute(address, chainOf(blockchain), e.graph.TransactionContext(address)), nil
}

// GenerateComplianceReport summarises the audit trail over [start, end]
func (e *Engine) GenerateComplianceReport(ctx context.Context, start, end time.Time) (models.ComplianceReport, error) {
	if err := ctx.Err(); err != nil {
		return models.ComplianceReport{}, err
	}
	report, err := e.compliance.GenerateReport(start, end)
	if err != nil {
		if errors.Is(err, compliance.ErrInvalidPeriod) {
			return models.ComplianceReport{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return models.ComplianceReport{}, fmt.Errorf("generate compliance report: %w", err)
	}
	return report, nil
}

// Stats returns a snapshot of engine activity
func (e *Engine) Stats() models.EngineStats {
	return models.EngineStats{
		Nodes:           e.graph.NodeCount(),
		Edges:           e.graph.EdgeCount(),
		AnalysesRun:     e.analyses.Load(),
		WalletsAnalysed: e.wallets.Load(),
		AuditEntries:    e.compliance.Len(),
		KnownEntities:   e.intel.Entities().Len(),
		UptimeSeconds:   e.now().Sub(e.started).Seconds(),
		Frameworks:      e.DefaultFrameworks(),
	}
}
