package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Transfer is a single directed value movement between two addresses.
// It is the edge type of the transaction graph.
type Transfer struct {
	From      string          `json:"fromAddress"`
	To        string          `json:"toAddress"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"` // unix seconds
	Hash      string          `json:"hash"`
	Flags     []string        `json:"flags,omitempty"` // caller-supplied risk flags
}

// Transaction is a transfer submitted for analysis together with its chain.
type Transaction struct {
	Transfer
	Blockchain string `json:"blockchain,omitempty"`
}

// AddressNode is the node view of an address in the transaction graph
type AddressNode struct {
	Address      string   `json:"address"`
	Transactions []string `json:"transactions"` // tx hashes touching the address
	RiskScore    float64  `json:"riskScore"`    // running score, 0-100
}

// RiskLevel is the four-step risk scale shared by compliance results and verdicts
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders levels: LOW=0 .. CRITICAL=3. Unknown levels rank as LOW.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	}
	return 0
}

// ParseRiskLevel maps a case-insensitive level name onto the scale
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch l := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return l, true
	}
	return "", false
}
