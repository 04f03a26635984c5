package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/riskgraph/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// from any working directory.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore mirrors the audit trail and keeps the verdict history
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[DB] Connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[DB] Risk graph schema initialized")
	return nil
}

// SaveAuditEntry stores an audit entry. Re-saving the same id is a no-op.
// The payload goes into a TEXT column so the signed bytes come back verbatim.
func (s *PostgresStore) SaveAuditEntry(ctx context.Context, entry models.AuditEntry) error {
	sql := `
		INSERT INTO audit_entries (id, recorded_at, event_type, compliant, payload, hmac)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, entry.ID, entry.Timestamp, entry.EventType, entry.Compliant, string(entry.Payload), entry.Hash)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %s: %w", entry.ID, err)
	}
	return nil
}

// AuditHook adapts SaveAuditEntry to the evaluator hook signature
func (s *PostgresStore) AuditHook(entry models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveAuditEntry(ctx, entry); err != nil {
		log.Printf("[DB] %v", err)
	}
}

// LoadAuditEntries returns the stored entries recorded within [start, end],
// oldest first
func (s *PostgresStore) LoadAuditEntries(ctx context.Context, start, end time.Time) ([]models.AuditEntry, error) {
	sql := `
		SELECT id, recorded_at, event_type, compliant, payload, hmac
		FROM audit_entries
		WHERE recorded_at BETWEEN $1 AND $2
		ORDER BY recorded_at, id;
	`
	rows, err := s.pool.Query(ctx, sql, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			id, eventType, payload, hash string
			recordedAt                   time.Time
			compliant                    bool
		)
		if err := rows.Scan(&id, &recordedAt, &eventType, &compliant, &payload, &hash); err != nil {
			return nil, err
		}
		entries = append(entries, auditEntryFromRow(id, recordedAt, eventType, compliant, payload, hash))
	}
	return entries, rows.Err()
}

func auditEntryFromRow(id string, recordedAt time.Time, eventType string, compliant bool, payload, hash string) models.AuditEntry {
	return models.AuditEntry{
		ID:        id,
		Timestamp: recordedAt.UTC(),
		EventType: eventType,
		Compliant: compliant,
		Payload:   json.RawMessage(payload),
		Hash:      hash,
	}
}

// PublishVerdict persists a transaction verdict
func (s *PostgresStore) PublishVerdict(ctx context.Context, v models.RiskVerdict) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	flags := v.Flags
	if flags == nil {
		flags = []string{}
	}

	sql := `
		INSERT INTO risk_verdicts
			(analysis_id, tx_hash, from_address, to_address, risk_score, risk_level,
			 flags, confidence, verdict, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (analysis_id) DO NOTHING;
	`
	_, err = s.pool.Exec(ctx, sql, v.AnalysisID, v.TxHash, v.FromAddress, v.ToAddress,
		v.RiskScore, string(v.RiskLevel), flags, v.Confidence, doc, v.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert verdict %s: %w", v.AnalysisID, err)
	}
	return nil
}

// VerdictQuery filters the verdict history
type VerdictQuery struct {
	Address  string
	MinLevel models.RiskLevel
	Page     int
	Limit    int
}

// normalize clamps paging to sane bounds
func (q VerdictQuery) normalize() VerdictQuery {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}

// levelsAtOrAbove lists the level names ranked at or above min. An empty min
// selects every level.
func levelsAtOrAbove(min models.RiskLevel) []string {
	all := []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical}
	out := make([]string, 0, len(all))
	for _, l := range all {
		if min == "" || l.Rank() >= min.Rank() {
			out = append(out, string(l))
		}
	}
	return out
}

// GetVerdicts pages through stored verdicts, newest first. Returns the page and
// the total number of matching rows.
func (s *PostgresStore) GetVerdicts(ctx context.Context, q VerdictQuery) ([]models.RiskVerdict, int, error) {
	q = q.normalize()
	offset := (q.Page - 1) * q.Limit
	levels := levelsAtOrAbove(q.MinLevel)

	where := `WHERE risk_level = ANY($1) AND ($2 = '' OR from_address = $2 OR to_address = $2)`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM risk_verdicts `+where, levels, q.Address).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT verdict FROM risk_verdicts `+where+` ORDER BY analyzed_at DESC LIMIT $3 OFFSET $4`,
		levels, q.Address, q.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	verdicts := make([]models.RiskVerdict, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		var v models.RiskVerdict
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, 0, fmt.Errorf("decode stored verdict: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return verdicts, total, nil
}
