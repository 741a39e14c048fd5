package orchestrate

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairline-labs/fairline/internal/model"
)

// Executor accepts a generated plan for execution. Seeding must be
// non-blocking from the coordinator's point of view; outcomes flow back
// asynchronously through the completion callback.
type Executor interface {
	Seed(ctx context.Context, plan *model.Plan) error
}

// CompletionFunc receives per-step outcomes once a plan finishes. The
// coordinator's plan-completion path feeds these into the strategy engine's
// learning state.
type CompletionFunc func(subjectID string, outcomes []model.StepOutcome)

// LocalExecutor runs plan steps in process through the skill registry,
// rate-limited so outbound submissions don't burst.
type LocalExecutor struct {
	registry   *Registry
	limiter    *rate.Limiter
	onComplete CompletionFunc

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewLocalExecutor builds an executor over the registry. stepsPerSecond
// bounds execution rate; zero or negative disables limiting.
func NewLocalExecutor(registry *Registry, stepsPerSecond float64, onComplete CompletionFunc) *LocalExecutor {
	var limiter *rate.Limiter
	if stepsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(stepsPerSecond), 1)
	}
	return &LocalExecutor{registry: registry, limiter: limiter, onComplete: onComplete}
}

// SetCompletion installs the completion callback. Call before any Seed; the
// executor and coordinator reference each other, so one side is wired late.
func (e *LocalExecutor) SetCompletion(fn CompletionFunc) {
	e.onComplete = fn
}

// Seed executes the plan on a background goroutine and reports outcomes via
// the completion callback.
func (e *LocalExecutor) Seed(ctx context.Context, plan *model.Plan) error {
	e.wg.Add(1)
	e.inFlight.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)
		outcomes := e.Execute(ctx, plan)
		if e.onComplete != nil {
			e.onComplete(plan.SubjectID, outcomes)
		}
	}()
	return nil
}

// Wait blocks until every seeded plan has executed and reported completion.
func (e *LocalExecutor) Wait() {
	e.wg.Wait()
}

// InFlight returns the number of plans currently executing.
func (e *LocalExecutor) InFlight() int64 {
	return e.inFlight.Load()
}

// Execute runs every step in order and returns the per-step outcomes.
// Step failures never abort the plan; they surface as SYSTEM_ERROR.
func (e *LocalExecutor) Execute(ctx context.Context, plan *model.Plan) []model.StepOutcome {
	log := zap.L().With(zap.String("plan", plan.ID), zap.String("subject", plan.SubjectID))
	outcomes := make([]model.StepOutcome, 0, len(plan.Steps))

	for i, step := range plan.Steps {
		out := model.StepOutcome{
			StepIndex:      i,
			SkillID:        step.SkillID,
			TargetEntityID: step.TargetEntityID,
			RuleIDs:        step.RuleIDs,
			StrategyType:   step.StrategyType,
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				out.Outcome = model.OutcomeSystemError
				out.Message = err.Error()
				outcomes = append(outcomes, out)
				continue
			}
		}

		fn, err := e.registry.Get(step.SkillID)
		if err != nil {
			out.Outcome = model.OutcomeSystemError
			out.Message = err.Error()
			outcomes = append(outcomes, out)
			log.Error("orchestrate: unknown skill", zap.String("skill", string(step.SkillID)))
			continue
		}

		msg, err := fn(ctx, step)
		if err != nil {
			out.Outcome = model.OutcomeSystemError
			out.Message = err.Error()
			log.Warn("orchestrate: step failed",
				zap.Int("step", i),
				zap.String("skill", string(step.SkillID)),
				zap.Error(err),
			)
		} else {
			out.Outcome = model.OutcomeSuccess
			out.Message = msg
			log.Info("orchestrate: step complete",
				zap.Int("step", i),
				zap.String("skill", string(step.SkillID)),
			)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
