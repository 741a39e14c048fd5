package orchestrate

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/fairline-labs/fairline/internal/model"
)

// BuildPlan turns a strategy set into an ordered orchestration plan.
// violationsByID supplies the rules behind each strategy's violation ids so
// executors and the feedback path can key outcomes per (entity, rule, type).
func BuildPlan(subjectID, fingerprint string, strategies []model.EnforcementStrategy, violationsByID map[string]model.Violation) (*model.Plan, error) {
	plan := &model.Plan{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}

	for _, s := range strategies {
		skill, err := SkillFor(s.Type)
		if err != nil {
			return nil, eris.Wrapf(err, "orchestrate: plan for subject %s", subjectID)
		}

		rules := make([]model.RuleID, 0, len(s.ViolationIDs))
		seen := make(map[model.RuleID]bool, len(s.ViolationIDs))
		for _, vid := range s.ViolationIDs {
			v, ok := violationsByID[vid]
			if !ok || seen[v.RuleID] {
				continue
			}
			seen[v.RuleID] = true
			rules = append(rules, v.RuleID)
		}

		plan.Steps = append(plan.Steps, model.PlanStep{
			SkillID:        skill,
			TargetEntityID: s.TargetEntityID,
			RuleIDs:        rules,
			ViolationIDs:   s.ViolationIDs,
			StrategyType:   s.Type,
			Metadata: map[string]any{
				"removal_probability": s.RemovalProbability,
				"litigation_risk":     string(s.LitigationRisk),
				"recommended_action":  s.RecommendedAction,
			},
		})
	}
	return plan, nil
}

// IndexViolations builds the violation-id lookup BuildPlan consumes.
func IndexViolations(violations []model.Violation) map[string]model.Violation {
	out := make(map[string]model.Violation, len(violations))
	for _, v := range violations {
		out[v.ID] = v
	}
	return out
}
