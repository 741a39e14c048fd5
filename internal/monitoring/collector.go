package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/store"
)

// MetricsSnapshot holds a point-in-time view of the compliance corpus.
type MetricsSnapshot struct {
	Subjects   int `json:"subjects"`
	Tradelines int `json:"tradelines"`

	// Violations by severity across all stored profiles.
	ViolationsTotal  int `json:"violations_total"`
	ViolationsHigh   int `json:"violations_high"`
	ViolationsMedium int `json:"violations_medium"`
	ViolationsLow    int `json:"violations_low"`

	// Active strategies by type.
	StrategiesTotal      int `json:"strategies_total"`
	StrategiesDispute    int `json:"strategies_dispute"`
	StrategiesCFPB       int `json:"strategies_cfpb"`
	StrategiesEscalation int `json:"strategies_escalation"`

	// Execution history totals.
	OutcomesSuccess   int `json:"outcomes_success"`
	OutcomesRejection int `json:"outcomes_rejection"`
	OutcomesError     int `json:"outcomes_error"`

	// Portfolio aggregates.
	TotalPastDue          float64 `json:"total_past_due"`
	AvgRemovalProbability int     `json:"avg_removal_probability"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect walks every stored profile and the outcome ledger.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	subjects, err := c.store.ListSubjects(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list subjects")
	}
	snap.Subjects = len(subjects)

	var probabilitySum, strategyCount int
	for _, id := range subjects {
		profile, err := c.store.LoadProfile(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: load profile %s", id)
		}
		if profile == nil {
			continue
		}
		snap.Tradelines += len(profile.Tradelines)
		snap.TotalPastDue += profile.Summary.TotalPastDue

		for _, v := range profile.ActiveViolations {
			snap.ViolationsTotal++
			switch v.Severity {
			case model.SeverityHigh:
				snap.ViolationsHigh++
			case model.SeverityMedium:
				snap.ViolationsMedium++
			case model.SeverityLow:
				snap.ViolationsLow++
			}
		}
		for _, s := range profile.ActiveStrategies {
			snap.StrategiesTotal++
			probabilitySum += s.RemovalProbability
			strategyCount++
			switch s.Type {
			case model.StrategyDispute:
				snap.StrategiesDispute++
			case model.StrategyCFPBComplaint:
				snap.StrategiesCFPB++
			case model.StrategyEscalation:
				snap.StrategiesEscalation++
			}
		}
	}
	if strategyCount > 0 {
		snap.AvgRemovalProbability = probabilitySum / strategyCount
	}

	totals, err := c.store.OutcomeTotals(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: outcome totals")
	}
	snap.OutcomesSuccess = totals[model.OutcomeSuccess]
	snap.OutcomesRejection = totals[model.OutcomeLegalRejection]
	snap.OutcomesError = totals[model.OutcomeSystemError]

	return snap, nil
}
