package model

import "time"

// OutcomeType classifies the result of one executed enforcement action.
type OutcomeType string

const (
	// OutcomeSuccess is a substantive win (deletion, correction, settlement).
	OutcomeSuccess OutcomeType = "SUCCESS"
	// OutcomeLegalRejection is a substantive refusal on the merits. The only
	// outcome that drives the drift penalty.
	OutcomeLegalRejection OutcomeType = "LEGAL_REJECTION"
	// OutcomeSystemError is an infrastructure failure. Never adjusts
	// probability and never establishes a cooldown window.
	OutcomeSystemError OutcomeType = "SYSTEM_ERROR"
)

// Substantive reports whether the outcome reflects a real decision rather
// than an infrastructure failure.
func (o OutcomeType) Substantive() bool {
	return o == OutcomeSuccess || o == OutcomeLegalRejection
}

// OutcomeEntry is one execution-history record, keyed per target entity.
// Process-wide learning state: decays probabilistically, never resets fully.
type OutcomeEntry struct {
	SubjectID string       `json:"subject_id,omitempty"`
	EntityID  string       `json:"entity_id"`
	RuleID    RuleID       `json:"rule_id"`
	Type      StrategyType `json:"type"`
	Outcome   OutcomeType  `json:"outcome"`
	Date      time.Time    `json:"date"`
}
