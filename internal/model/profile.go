package model

import "time"

// Identity holds the consumer identity facts extracted from the report.
type Identity struct {
	Name      Field[string] `json:"name"`
	Address   Field[string] `json:"address"`
	SSNLast4  Field[string] `json:"ssn_last4"`
	BirthYear Field[int]    `json:"birth_year"`
}

// ProfileSummary carries derived metrics refreshed after each cycle.
type ProfileSummary struct {
	TradelineCount     int     `json:"tradeline_count"`
	CollectionCount    int     `json:"collection_count"`
	ViolationCount     int     `json:"violation_count"`
	HighSeverityCount  int     `json:"high_severity_count"`
	StrategyCount      int     `json:"strategy_count"`
	TotalPastDue       float64 `json:"total_past_due"`
	AvgRemovalProbability int  `json:"avg_removal_probability"`
}

// UserCreditProfile is the aggregate root for one subject. Owned exclusively
// by the intelligence loop during a processing cycle and persisted atomically
// after each cycle.
type UserCreditProfile struct {
	SubjectID string `json:"subject_id"`

	Identity Identity       `json:"identity"`
	Scores   map[string]int `json:"scores,omitempty"` // bureau -> score

	Tradelines    []Tradeline    `json:"tradelines"`
	Collections   []Collection   `json:"collections,omitempty"`
	Inquiries     []Inquiry      `json:"inquiries,omitempty"`
	PublicRecords []PublicRecord `json:"public_records,omitempty"`

	DisputeHistory []DisputeRecord `json:"dispute_history,omitempty"`

	ActiveViolations []Violation           `json:"active_violations"`
	ActiveStrategies []EnforcementStrategy `json:"active_strategies"`

	Summary   ProfileSummary `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tradeline returns the tradeline with the given id, or nil.
func (p *UserCreditProfile) Tradeline(id string) *Tradeline {
	for i := range p.Tradelines {
		if p.Tradelines[i].ID == id {
			return &p.Tradelines[i]
		}
	}
	return nil
}

// RefreshSummary recomputes the derived summary metrics in place.
func (p *UserCreditProfile) RefreshSummary() {
	s := ProfileSummary{
		TradelineCount:  len(p.Tradelines),
		CollectionCount: len(p.Collections),
		ViolationCount:  len(p.ActiveViolations),
		StrategyCount:   len(p.ActiveStrategies),
	}
	for _, v := range p.ActiveViolations {
		if v.Severity == SeverityHigh {
			s.HighSeverityCount++
		}
	}
	for i := range p.Tradelines {
		s.TotalPastDue += p.Tradelines[i].PastDue.Value
	}
	if len(p.ActiveStrategies) > 0 {
		var total int
		for _, st := range p.ActiveStrategies {
			total += st.RemovalProbability
		}
		s.AvgRemovalProbability = total / len(p.ActiveStrategies)
	}
	p.Summary = s
}
