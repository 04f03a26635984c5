package mirror

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Graph Mirror
//
// Copies every transfer accepted by the engine into Neo4j so investigators
// can browse the address graph with Cypher. The in-memory graph stays
// authoritative; the mirror is best effort.

// ErrMissingURI indicates the Neo4j URI is not provided
var ErrMissingURI = errors.New("neo4j URI is required")

const mergeTransferCypher = `
MERGE (s:Address {id: $from})
MERGE (r:Address {id: $to})
CREATE (s)-[:TRANSFER {hash: $hash, amount: $amount, timestamp: $timestamp, flags: $flags}]->(r)
`

const setRiskCypher = `
MATCH (a:Address {id: $address})
SET a.riskScore = CASE WHEN coalesce(a.riskScore, 0) < $score THEN $score ELSE a.riskScore END
`

// Writer runs a write query. Implemented by the Neo4j driver wrapper and by
// test doubles.
type Writer interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) error
	Close(ctx context.Context) error
}

// Options configures the Neo4j connection
type Options struct {
	URI      string
	Database string
	Username string
	Password string
}

// Mirror implements the engine transfer observer and verdict publisher
type Mirror struct {
	w Writer
}

func New(w Writer) *Mirror {
	return &Mirror{w: w}
}

// Connect dials Neo4j and verifies connectivity
func Connect(ctx context.Context, opts Options) (*Mirror, error) {
	w, err := newDriverWriter(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("[Neo4j] Mirroring transfers to %s", opts.URI)
	return New(w), nil
}

// ObserveTransfer writes t as a TRANSFER relationship between two Address nodes
func (m *Mirror) ObserveTransfer(ctx context.Context, t models.Transfer) error {
	flags := t.Flags
	if flags == nil {
		flags = []string{}
	}
	params := map[string]any{
		"from":      t.From,
		"to":        t.To,
		"hash":      t.Hash,
		"amount":    t.Amount.String(),
		"timestamp": t.Timestamp,
		"flags":     flags,
	}
	if err := m.w.ExecuteWrite(ctx, mergeTransferCypher, params); err != nil {
		return fmt.Errorf("mirror transfer %s: %w", t.Hash, err)
	}
	return nil
}

// PublishVerdict raises the mirrored risk score of both endpoints
func (m *Mirror) PublishVerdict(ctx context.Context, v models.RiskVerdict) error {
	for _, addr := range []string{v.FromAddress, v.ToAddress} {
		params := map[string]any{"address": addr, "score": int64(v.RiskScore)}
		if err := m.w.ExecuteWrite(ctx, setRiskCypher, params); err != nil {
			return fmt.Errorf("mirror risk for %s: %w", addr, err)
		}
	}
	return nil
}

func (m *Mirror) Close(ctx context.Context) error {
	return m.w.Close(ctx)
}

type driverWriter struct {
	driver   neo4j.DriverWithContext
	database string
}

func newDriverWriter(ctx context.Context, opts Options) (*driverWriter, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &driverWriter{driver: driver, database: opts.Database}, nil
}

func (d *driverWriter) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (d *driverWriter) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
