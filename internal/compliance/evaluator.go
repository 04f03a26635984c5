package compliance

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Compliance Rule Evaluator
//
// Checks a transaction against the rule tables of the requested frameworks.
// A rule is violated when the amount meets or exceeds its threshold; every
// mandatory-reporting violation also produces a filing obligation due 24h
// later. Each evaluation appends one HMAC-signed entry to the audit trail,
// which is append-only and safe for concurrent use.

const (
	EventComplianceCheck = "COMPLIANCE_CHECK"
	reportDeadline       = 24 * time.Hour
	secretSize           = 32
)

var ErrEmptySecret = errors.New("audit secret must not be empty")

// AuditHook receives every audit entry after it is appended
type AuditHook func(models.AuditEntry)

// Evaluator applies compliance rules and keeps the signed audit trail
type Evaluator struct {
	secret []byte
	now    func() time.Time

	mu    sync.RWMutex
	trail []models.AuditEntry
	hooks []AuditHook
}

type Option func(*Evaluator)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithAuditHook registers a sink for appended audit entries
func WithAuditHook(h AuditHook) Option {
	return func(e *Evaluator) { e.hooks = append(e.hooks, h) }
}

// NewEvaluator creates an evaluator signing its trail with secret
func NewEvaluator(secret []byte, opts ...Option) (*Evaluator, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	e := &Evaluator{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
		trail:  make([]models.AuditEntry, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RandomSecret returns a fresh per-process signing secret
func RandomSecret() ([]byte, error) {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate audit secret: %w", err)
	}
	return b, nil
}

// AddAuditHook registers a sink after construction
func (e *Evaluator) AddAuditHook(h AuditHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
}

// Evaluate checks tx against every rule of frameworks and records the result
func (e *Evaluator) Evaluate(tx models.Transaction, frameworks []Framework) (models.ComplianceResult, error) {
	// stores keep microseconds; the signed timestamp must survive a round trip
	now := e.now().UTC().Truncate(time.Microsecond)
	res := models.ComplianceResult{
		Compliant:       true,
		Frameworks:      make([]string, 0, len(frameworks)),
		Violations:      []models.ComplianceViolation{},
		RequiredReports: []models.RequiredReport{},
		RiskLevel:       models.RiskLow,
		AuditID:         uuid.NewString(),
	}

	for _, f := range frameworks {
		res.Frameworks = append(res.Frameworks, string(f))
		for _, r := range Rules(f) {
			if tx.Amount.LessThan(r.Threshold) {
				continue
			}
			res.Violations = append(res.Violations, models.ComplianceViolation{
				RuleID:            r.ID,
				Framework:         string(r.Framework),
				Description:       r.Description,
				Severity:          r.Severity,
				ThresholdExceeded: tx.Amount.Sub(r.Threshold),
				Timestamp:         now,
			})
			if r.MandatoryReporting {
				res.RequiredReports = append(res.RequiredReports, models.RequiredReport{
					RuleID:    r.ID,
					Framework: string(r.Framework),
					Deadline:  now.Add(reportDeadline),
					Severity:  r.Severity,
				})
			}
		}
	}

	if len(res.Violations) > 0 {
		res.Compliant = false
		res.RiskLevel = worstSeverity(res.Violations)
	}

	if _, err := e.record(EventComplianceCheck, now, res.Compliant, auditPayload{
		AuditID:     res.AuditID,
		TxHash:      tx.Hash,
		FromAddress: tx.From,
		ToAddress:   tx.To,
		Amount:      tx.Amount.String(),
		Result:      res,
	}); err != nil {
		return res, fmt.Errorf("record audit entry: %w", err)
	}
	return res, nil
}

type auditPayload struct {
	AuditID     string                  `json:"auditId"`
	TxHash      string                  `json:"txHash"`
	FromAddress string                  `json:"fromAddress"`
	ToAddress   string                  `json:"toAddress"`
	Amount      string                  `json:"amount"`
	Result      models.ComplianceResult `json:"result"`
}

// worstSeverity returns CRITICAL > HIGH > MEDIUM across violations
func worstSeverity(violations []models.ComplianceViolation) models.RiskLevel {
	worst := models.RiskMedium
	for _, v := range violations {
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
	}
	return worst
}

// record signs and appends an audit entry, then notifies hooks outside the lock
func (e *Evaluator) record(eventType string, ts time.Time, compliant bool, payload any) (models.AuditEntry, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return models.AuditEntry{}, err
	}
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: ts,
		EventType: eventType,
		Compliant: compliant,
		Payload:   canonical,
	}
	entry.Hash = sign(e.secret, signedInput(entry))

	e.mu.Lock()
	e.trail = append(e.trail, entry)
	hooks := make([]AuditHook, len(e.hooks))
	copy(hooks, e.hooks)
	e.mu.Unlock()

	for _, h := range hooks {
		h(entry)
	}
	log.Printf("[Compliance] Audit %s recorded (%s, compliant=%t)", entry.ID, eventType, compliant)
	return entry, nil
}

// Entries returns a copy of the audit trail in append order
func (e *Evaluator) Entries() []models.AuditEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.AuditEntry, len(e.trail))
	copy(out, e.trail)
	return out
}

// Len returns the number of audit entries
func (e *Evaluator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.trail)
}

// Verify recomputes the HMAC of entry under this evaluator's secret. The
// MAC binds the ID, timestamp, event type and compliance flag as well as
// the payload.
func (e *Evaluator) Verify(entry models.AuditEntry) bool {
	return verify(e.secret, signedInput(entry), entry.Hash)
}

// VerifyAll checks every entry and returns the IDs whose MAC does not match
func (e *Evaluator) VerifyAll(entries []models.AuditEntry) (valid int, invalid []string) {
	invalid = []string{}
	for _, entry := range entries {
		if e.Verify(entry) {
			valid++
			continue
		}
		invalid = append(invalid, entry.ID)
	}
	return valid, invalid
}

// LevelScore maps a compliance risk level onto the 0-100 scale
func LevelScore(level models.RiskLevel) float64 {
	switch level {
	case models.RiskCritical:
		return 100
	case models.RiskHigh:
		return 75
	case models.RiskMedium:
		return 50
	}
	return 0
}
