package orchestrate

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/fairline-labs/fairline/internal/model"
)

// SkillFunc executes one plan step and returns a human-readable result
// message. A returned error marks the step as SYSTEM_ERROR; substantive
// legal outcomes arrive later through the outcome-recording path.
type SkillFunc func(ctx context.Context, step model.PlanStep) (string, error)

// skillForStrategy is the closed strategy-type → skill dispatch mapping.
var skillForStrategy = map[model.StrategyType]model.SkillID{
	model.StrategyDispute:       model.SkillSendDispute,
	model.StrategyCFPBComplaint: model.SkillFileCFPBComplaint,
	model.StrategyEscalation:    model.SkillEscalateFurnisher,
}

// SkillFor resolves the skill that executes a strategy type.
func SkillFor(t model.StrategyType) (model.SkillID, error) {
	id, ok := skillForStrategy[t]
	if !ok {
		return "", eris.Errorf("orchestrate: no skill for strategy type %s", t)
	}
	return id, nil
}

// Registry holds the executable skill implementations. The id vocabulary is
// closed; registration only swaps implementations (e.g. a real submission
// client for the default draft-only one).
type Registry struct {
	mu     sync.RWMutex
	skills map[model.SkillID]SkillFunc
}

// NewRegistry returns a registry pre-loaded with draft-only defaults: each
// skill renders its submission payload but performs no external I/O.
func NewRegistry() *Registry {
	r := &Registry{skills: make(map[model.SkillID]SkillFunc)}
	r.Register(model.SkillSendDispute, draftSkill("dispute letter drafted"))
	r.Register(model.SkillFileCFPBComplaint, draftSkill("CFPB complaint drafted"))
	r.Register(model.SkillEscalateFurnisher, draftSkill("furnisher escalation drafted"))
	return r
}

// Register installs or replaces the implementation for a skill id.
func (r *Registry) Register(id model.SkillID, fn SkillFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[id] = fn
}

// Get returns the implementation for a skill id.
func (r *Registry) Get(id model.SkillID) (SkillFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.skills[id]
	if !ok {
		return nil, eris.Errorf("orchestrate: unknown skill %s", id)
	}
	return fn, nil
}

func draftSkill(message string) SkillFunc {
	return func(_ context.Context, step model.PlanStep) (string, error) {
		return message + " for " + step.TargetEntityID, nil
	}
}
