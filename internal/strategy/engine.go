package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
)

const (
	// minConfidence gates violations out of strategy generation.
	minConfidence = 60
	// conflictFreezeConfidence is the trust level at which a conflict-frozen
	// balance halts all strategy generation for its entity.
	conflictFreezeConfidence = 90
	// cooldownWindow suppresses re-action on an (entity, rule) pair after a
	// substantive outcome.
	cooldownWindow = 30 * 24 * time.Hour

	// driftPerRejection is the probability penalty per retained rejection.
	driftPerRejection = -15
	// recoveryPerPeriod is the rehabilitation credit per 180 days since the
	// most recent rejection.
	recoveryPerPeriod = 5
	recoveryPeriod    = 180 * 24 * time.Hour

	// probabilityFloor keeps removal probability from ever signaling hopeless.
	probabilityFloor = 10
)

// base probabilities and risks per tier.
const (
	baseCFPB       = 85
	baseEscalation = 70
	baseDispute    = 55
)

// escalationThreshold is the actionable-violation count that lifts a
// no-HIGH entity from DISPUTE to ESCALATION.
const escalationThreshold = 3

// Engine converts violations into prioritized, risk-tiered enforcement
// strategies, informed by the self-adjusting historical-outcome model.
type Engine struct {
	history HistoryStore
	now     func() time.Time
}

// NewEngine builds a strategy engine over the given history store.
func NewEngine(history HistoryStore) *Engine {
	return &Engine{history: history, now: time.Now}
}

// NewEngineAt builds an engine with an injected clock.
func NewEngineAt(history HistoryStore, now func() time.Time) *Engine {
	return &Engine{history: history, now: now}
}

// RecordOutcome appends one executed-action result to the learning state.
// Called by the orchestration-feedback path and by simulation harnesses.
func (e *Engine) RecordOutcome(ctx context.Context, entityID string, ruleID model.RuleID, t model.StrategyType, outcome model.OutcomeType) error {
	entry := model.OutcomeEntry{
		EntityID: entityID,
		RuleID:   ruleID,
		Type:     t,
		Outcome:  outcome,
		Date:     e.now(),
	}
	if err := e.history.Append(ctx, entry); err != nil {
		return eris.Wrap(err, "strategy: append outcome")
	}
	zap.L().Info("strategy: outcome recorded",
		zap.String("entity", entityID),
		zap.String("rule", string(ruleID)),
		zap.String("type", string(t)),
		zap.String("outcome", string(outcome)),
	)
	return nil
}

// DecayHistory halves the retained rejection count for an entity. The
// coordinator invokes this once per processing cycle before generation,
// bounding how long historical punishment compounds.
func (e *Engine) DecayHistory(ctx context.Context, entityID string) error {
	dropped, err := e.history.Decay(ctx, entityID)
	if err != nil {
		return eris.Wrap(err, "strategy: decay history")
	}
	if dropped > 0 {
		zap.L().Debug("strategy: history decayed",
			zap.String("entity", entityID),
			zap.Int("dropped", dropped),
		)
	}
	return nil
}

// GenerateStrategies derives at most one strategy per affected entity from
// the profile's active violations and writes the new set onto
// profile.ActiveStrategies (full replace).
func (e *Engine) GenerateStrategies(ctx context.Context, profile *model.UserCreditProfile) ([]model.EnforcementStrategy, error) {
	now := e.now()

	// Step 1: confidence gate.
	var gated []model.Violation
	dropped := 0
	for _, v := range profile.ActiveViolations {
		if v.Confidence < minConfidence {
			dropped++
			continue
		}
		gated = append(gated, v)
	}
	if dropped > 0 {
		zap.L().Info("strategy: dropped low-confidence violations",
			zap.String("subject", profile.SubjectID),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(gated)),
		)
	}

	// Step 2: group by target entity.
	byEntity := make(map[string][]model.Violation)
	for _, v := range gated {
		byEntity[v.RelatedEntityID] = append(byEntity[v.RelatedEntityID], v)
	}
	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	var out []model.EnforcementStrategy
	for _, entityID := range entityIDs {
		violations := byEntity[entityID]

		// Step 3: conflict freeze — do not guess a remedy while the
		// underlying fact is disputed between high-trust sources.
		if tl := profile.Tradeline(entityID); tl != nil &&
			tl.Balance.Conflict && tl.Balance.Confidence >= conflictFreezeConfidence {
			zap.L().Warn("strategy: entity frozen on balance conflict",
				zap.String("entity", entityID),
				zap.Int("confidence", tl.Balance.Confidence),
			)
			continue
		}

		entries, err := e.history.ForEntity(ctx, entityID)
		if err != nil {
			return nil, eris.Wrapf(err, "strategy: history for %s", entityID)
		}

		// Step 4: cooldown filter.
		actionable := filterCooldown(violations, entries, now)
		if len(actionable) == 0 {
			zap.L().Debug("strategy: all violations in cooldown",
				zap.String("entity", entityID),
				zap.Int("suppressed", len(violations)),
			)
			continue
		}

		// Step 5: adjustment from the historical-outcome model.
		adjustment, drift, recovery := computeAdjustment(entries, now)

		// Step 6: tiering, first match wins.
		s := tierStrategy(entityID, actionable)
		s.RemovalProbability = applyFloor(s.RemovalProbability + adjustment)
		s.Metadata = map[string]any{
			"drift":            drift,
			"recovery":         recovery,
			"total_adjustment": adjustment,
			"actionable":       len(actionable),
			"suppressed":       len(violations) - len(actionable),
		}
		out = append(out, s)
	}

	profile.ActiveStrategies = out
	return out, nil
}

// filterCooldown suppresses violations whose (entity, rule) pair saw a
// substantive outcome within the cooldown window. SYSTEM_ERROR entries never
// establish or extend suppression.
func filterCooldown(violations []model.Violation, entries []model.OutcomeEntry, now time.Time) []model.Violation {
	var out []model.Violation
	for _, v := range violations {
		suppressed := false
		for _, entry := range entries {
			if entry.RuleID != v.RuleID {
				continue
			}
			if !entry.Outcome.Substantive() {
				continue
			}
			if now.Sub(entry.Date) < cooldownWindow {
				suppressed = true
				break
			}
		}
		if !suppressed {
			out = append(out, v)
		}
	}
	return out
}

// computeAdjustment derives the long-horizon probability adjustment:
// drift punishes repeated legal rejection, recovery slowly rehabilitates,
// and the net can cancel to zero but never turn positive.
func computeAdjustment(entries []model.OutcomeEntry, now time.Time) (total, drift, recovery int) {
	var rejections int
	var lastRejection time.Time
	for _, entry := range entries {
		if entry.Outcome != model.OutcomeLegalRejection {
			continue
		}
		rejections++
		if entry.Date.After(lastRejection) {
			lastRejection = entry.Date
		}
	}
	if rejections == 0 {
		return 0, 0, 0
	}

	drift = rejections * driftPerRejection
	periods := int(now.Sub(lastRejection) / recoveryPeriod)
	if periods > 0 {
		recovery = periods * recoveryPerPeriod
	}

	total = drift + recovery
	if total > 0 {
		total = 0
	}
	return total, drift, recovery
}

// tierStrategy picks the strategy tier for an entity's actionable violations.
func tierStrategy(entityID string, actionable []model.Violation) model.EnforcementStrategy {
	ids := make([]string, 0, len(actionable))
	hasHigh := false
	for _, v := range actionable {
		ids = append(ids, v.ID)
		if v.Severity == model.SeverityHigh {
			hasHigh = true
		}
	}

	s := model.EnforcementStrategy{
		ID:             uuid.New().String(),
		TargetEntityID: entityID,
		ViolationIDs:   ids,
	}

	switch {
	case hasHigh:
		s.Type = model.StrategyCFPBComplaint
		s.RemovalProbability = baseCFPB
		s.LitigationRisk = model.RiskHigh
		s.RecommendedAction = "File a CFPB complaint citing the high-severity findings; furnisher must respond on the record."
	case len(actionable) >= escalationThreshold:
		s.Type = model.StrategyEscalation
		s.RemovalProbability = baseEscalation
		s.LitigationRisk = model.RiskMedium
		s.RecommendedAction = fmt.Sprintf("Escalate to the furnisher's compliance office; %d concurrent findings on one account.", len(actionable))
	default:
		s.Type = model.StrategyDispute
		s.RemovalProbability = baseDispute
		s.LitigationRisk = model.RiskLow
		s.RecommendedAction = "Send a standard dispute letter to the reporting bureau."
	}
	return s
}

func applyFloor(p int) int {
	if p < probabilityFloor {
		return probabilityFloor
	}
	return p
}
