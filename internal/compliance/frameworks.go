package compliance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Framework is a regulatory regime with its own rule table
type Framework string

const (
	FATF    Framework = "FATF"
	BSA     Framework = "BSA"
	EU5AMLD Framework = "EU_5AMLD"
	MiCA    Framework = "MICA"
	FinCEN  Framework = "FINCEN"
	AUSTRAC Framework = "AUSTRAC"
	JAFIC   Framework = "JAFIC"
	FIU     Framework = "FIU"
)

var ErrUnknownFramework = errors.New("unknown compliance framework")

// AllFrameworks lists every supported framework
var AllFrameworks = []Framework{FATF, BSA, EU5AMLD, MiCA, FinCEN, AUSTRAC, JAFIC, FIU}

// DefaultFrameworks are evaluated when a caller names none
var DefaultFrameworks = []Framework{FATF, BSA, EU5AMLD}

// ParseFramework resolves a framework tag case-insensitively.
// "EU-5AMLD" and "5AMLD" are accepted aliases of EU_5AMLD.
func ParseFramework(s string) (Framework, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.ReplaceAll(tag, "-", "_")
	if tag == "5AMLD" {
		tag = string(EU5AMLD)
	}
	for _, f := range AllFrameworks {
		if string(f) == tag {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFramework, s)
}

// ParseFrameworks resolves tags, silently skipping unknown ones and duplicates
func ParseFrameworks(tags []string) []Framework {
	out := make([]Framework, 0, len(tags))
	seen := make(map[Framework]bool)
	for _, tag := range tags {
		f, err := ParseFramework(tag)
		if err != nil || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Rule is a single threshold obligation of a framework
type Rule struct {
	ID                 string
	Framework          Framework
	Description        string
	Threshold          decimal.Decimal
	MandatoryReporting bool
	RetentionDays      int
	Severity           models.RiskLevel
}

func rule(id string, f Framework, desc string, threshold int64, retention int, sev models.RiskLevel) Rule {
	return Rule{
		ID:                 id,
		Framework:          f,
		Description:        desc,
		Threshold:          decimal.NewFromInt(threshold),
		MandatoryReporting: true,
		RetentionDays:      retention,
		Severity:           sev,
	}
}

var ruleTables = map[Framework][]Rule{
	FATF: {
		rule("FATF-001", FATF, "Suspicious Transaction Reporting", 10000, 2555, models.RiskHigh),
		rule("FATF-002", FATF, "Travel Rule Compliance", 1000, 1825, models.RiskCritical),
		rule("FATF-003", FATF, "Enhanced Due Diligence", 25000, 2555, models.RiskHigh),
	},
	BSA: {
		rule("BSA-001", BSA, "Currency Transaction Report", 10000, 1825, models.RiskHigh),
		rule("BSA-002", BSA, "Suspicious Activity Report", 5000, 1825, models.RiskCritical),
	},
	EU5AMLD: {
		rule("5AMLD-001", EU5AMLD, "Virtual Asset Service Provider", 1000, 1825, models.RiskHigh),
		rule("5AMLD-002", EU5AMLD, "Beneficial Ownership", 0, 1825, models.RiskCritical),
	},
	MiCA: {
		rule("MICA-001", MiCA, "Crypto Asset Reporting", 1000, 2190, models.RiskHigh),
	},
	FinCEN:  {},
	AUSTRAC: {},
	JAFIC:   {},
	FIU:     {},
}

// Rules returns a copy of the rule table for f. Every supported framework
// has a table, possibly empty.
func Rules(f Framework) []Rule {
	table := ruleTables[f]
	out := make([]Rule, len(table))
	copy(out, table)
	return out
}
