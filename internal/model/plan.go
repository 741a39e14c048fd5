package model

import "time"

// SkillID names an executable orchestration step. Closed vocabulary with an
// explicit dispatch table in the orchestrate package.
type SkillID string

const (
	SkillSendDispute       SkillID = "send_dispute"
	SkillFileCFPBComplaint SkillID = "file_cfpb_complaint"
	SkillEscalateFurnisher SkillID = "escalate_furnisher"
)

// PlanStep is one discrete action within an orchestration plan.
type PlanStep struct {
	SkillID        SkillID        `json:"skill_id"`
	TargetEntityID string         `json:"target_entity_id"`
	RuleIDs        []RuleID       `json:"rule_ids"`
	ViolationIDs   []string       `json:"violation_ids"`
	StrategyType   StrategyType   `json:"strategy_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Plan is an ordered list of steps seeded from one strategy set.
type Plan struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Fingerprint string     `json:"fingerprint"`
	Steps       []PlanStep `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StepOutcome is the per-step result an executor reports back. It feeds the
// strategy engine's learning state via RecordOutcome.
type StepOutcome struct {
	StepIndex      int          `json:"step_index"`
	SkillID        SkillID      `json:"skill_id"`
	TargetEntityID string       `json:"target_entity_id"`
	RuleIDs        []RuleID     `json:"rule_ids"`
	StrategyType   StrategyType `json:"strategy_type"`
	Outcome        OutcomeType  `json:"outcome"`
	Message        string       `json:"message,omitempty"`
}
