package model

// Severity ranks how strongly a finding supports enforcement.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RuleID identifies a detection rule. The vocabulary is closed; the violation
// engine's rule table is the single source of truth.
type RuleID string

const (
	RuleBalancePastDue  RuleID = "METRO2-BAL-PAST-DUE"
	RuleClosedDerog     RuleID = "METRO2-CLOSED-DEROG"
	RuleChargeOffStatus RuleID = "METRO2-CO-STATUS"
	RuleMissingOpenDate RuleID = "FCRA-MISSING-OPEN-DATE"
)

// Violation is a single statutory reporting finding against one entity.
// Immutable once created; a re-scan emits fresh instances rather than
// mutating old ones.
type Violation struct {
	ID              string   `json:"id"`
	RuleID          RuleID   `json:"rule_id"`
	Severity        Severity `json:"severity"`
	Description     string   `json:"description"`
	Statute         string   `json:"statute"`
	Remedy          string   `json:"remedy"`
	Confidence      int      `json:"confidence"`
	RelatedEntityID string   `json:"related_entity_id"`
}
