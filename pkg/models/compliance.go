package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ComplianceViolation records a rule whose threshold the transaction met or exceeded
type ComplianceViolation struct {
	RuleID            string          `json:"ruleId"`
	Framework         string          `json:"framework"`
	Description       string          `json:"description"`
	Severity          RiskLevel       `json:"severity"`
	ThresholdExceeded decimal.Decimal `json:"thresholdExceeded"` // amount - threshold
	Timestamp         time.Time       `json:"timestamp"`
}

// RequiredReport is a filing obligation triggered by a mandatory-reporting rule
type RequiredReport struct {
	RuleID    string    `json:"ruleId"`
	Framework string    `json:"framework"`
	Deadline  time.Time `json:"deadline"`
	Severity  RiskLevel `json:"severity"`
}

type ComplianceResult struct {
	Compliant       bool                  `json:"compliant"`
	Frameworks      []string              `json:"frameworks"`
	Violations      []ComplianceViolation `json:"violations"`
	RequiredReports []RequiredReport      `json:"requiredReports"`
	RiskLevel       RiskLevel             `json:"riskLevel"`
	AuditID         string                `json:"auditId"`
}

// AuditEntry is one append-only record of the compliance audit trail.
// Hash is the hex HMAC-SHA256 of Payload under the evaluator's secret.
type AuditEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"eventType"`
	Compliant bool            `json:"compliant"`
	Payload   json.RawMessage `json:"payload"`
	Hash      string          `json:"hash"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ComplianceReport summarises the audit trail over a period
type ComplianceReport struct {
	Period          ReportPeriod `json:"period"`
	TotalEvents     int          `json:"totalEvents"`
	ViolationsCount int          `json:"violationsCount"`
	ComplianceRate  float64      `json:"complianceRate"`
	Events          []AuditEntry `json:"events"`
	ReportHash      string       `json:"reportHash"` // SHA-256 over the canonical events
	GeneratedAt     time.Time    `json:"generatedAt"`
}
