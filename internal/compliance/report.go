package compliance

import (
	"errors"
	"fmt"
	"time"

	"github.com/rawblock/riskgraph/pkg/models"
)

var ErrInvalidPeriod = errors.New("report period ends before it starts")

// GenerateReport summarises the audit entries timestamped within
// [start, end], both ends inclusive
func (e *Evaluator) GenerateReport(start, end time.Time) (models.ComplianceReport, error) {
	if end.Before(start) {
		return models.ComplianceReport{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	events := make([]models.AuditEntry, 0)
	violating := 0
	for _, entry := range e.Entries() {
		if entry.Timestamp.Before(start) || entry.Timestamp.After(end) {
			continue
		}
		events = append(events, entry)
		if !entry.Compliant {
			violating++
		}
	}

	canonical, err := canonicalJSON(events)
	if err != nil {
		return models.ComplianceReport{}, fmt.Errorf("hash report events: %w", err)
	}

	total := len(events)
	return models.ComplianceReport{
		Period:          models.ReportPeriod{Start: start, End: end},
		TotalEvents:     total,
		ViolationsCount: violating,
		ComplianceRate:  float64(total-violating) / float64(max(total, 1)),
		Events:          events,
		ReportHash:      sha256Hex(canonical),
		GeneratedAt:     e.now().UTC(),
	}, nil
}
