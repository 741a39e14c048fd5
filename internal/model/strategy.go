package model

// StrategyType is the closed set of enforcement actions the engine can derive.
type StrategyType string

const (
	StrategyDispute       StrategyType = "DISPUTE"
	StrategyCFPBComplaint StrategyType = "CFPB_COMPLAINT"
	StrategyEscalation    StrategyType = "ESCALATION"
)

// LitigationRisk tiers how aggressive a strategy is.
type LitigationRisk string

const (
	RiskLow    LitigationRisk = "LOW"
	RiskMedium LitigationRisk = "MEDIUM"
	RiskHigh   LitigationRisk = "HIGH"
)

// EnforcementStrategy is one prioritized action for one target entity.
// Ephemeral: regenerated on every strategy pass; the profile holds only the
// latest set.
type EnforcementStrategy struct {
	ID                 string         `json:"id"`
	Type               StrategyType   `json:"type"`
	TargetEntityID     string         `json:"target_entity_id"`
	ViolationIDs       []string       `json:"violation_ids"`
	RemovalProbability int            `json:"removal_probability"` // 0-100
	LitigationRisk     LitigationRisk `json:"litigation_risk"`
	RecommendedAction  string         `json:"recommended_action"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}
