package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/orchestrate"
	"github.com/fairline-labs/fairline/internal/store"
	"github.com/fairline-labs/fairline/internal/strategy"
	"github.com/fairline-labs/fairline/internal/violation"
)

// Request asks for one processing cycle over a subject's profile. Profile, if
// set, replaces whatever the store holds; otherwise the stored profile is
// loaded. AffectedEntityIDs narrows the violation scan to the named
// tradelines; nil means scan everything.
type Request struct {
	SubjectID         string
	Profile           *model.UserCreditProfile
	AffectedEntityIDs []string

	ctx context.Context
}

type subjectQueue struct {
	pending []Request
	running bool
}

// Coordinator serializes processing per subject: updates to one profile run
// strictly in arrival order, while distinct subjects proceed concurrently up
// to the worker bound.
type Coordinator struct {
	store      store.Store
	violations *violation.Engine
	strategies *strategy.Engine
	executor   orchestrate.Executor
	bus        *Bus

	sem chan struct{}

	mu              sync.Mutex
	queues          map[string]*subjectQueue
	lastFingerprint map[string]string
	wg              sync.WaitGroup

	// BeforeLifecycle, when set, runs at the start of each cycle. Test hook
	// for observing scheduling order.
	BeforeLifecycle func(subjectID string)
}

// NewCoordinator builds a coordinator with a bounded worker pool.
func NewCoordinator(st store.Store, v *violation.Engine, s *strategy.Engine, exec orchestrate.Executor, bus *Bus, workers int) *Coordinator {
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{
		store:           st,
		violations:      v,
		strategies:      s,
		executor:        exec,
		bus:             bus,
		sem:             make(chan struct{}, workers),
		queues:          make(map[string]*subjectQueue),
		lastFingerprint: make(map[string]string),
	}
}

// Events exposes the lifecycle event bus.
func (c *Coordinator) Events() *Bus {
	return c.bus
}

// Enqueue schedules a processing cycle. Cycles for the same subject run in
// FIFO order, one at a time.
func (c *Coordinator) Enqueue(ctx context.Context, req Request) error {
	if req.SubjectID == "" {
		return eris.New("loop: request missing subject id")
	}
	req.ctx = ctx

	c.publish(req.SubjectID, model.PhaseQueued, 0, "cycle queued", nil)

	c.mu.Lock()
	q, ok := c.queues[req.SubjectID]
	if !ok {
		q = &subjectQueue{}
		c.queues[req.SubjectID] = q
	}
	q.pending = append(q.pending, req)
	start := !q.running
	if start {
		q.running = true
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if start {
		go c.drain(req.SubjectID)
	}
	return nil
}

// Wait blocks until every queued cycle has finished. Used by batch commands
// and tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// drain runs one subject's queue to exhaustion, then parks.
func (c *Coordinator) drain(subjectID string) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		q := c.queues[subjectID]
		if len(q.pending) == 0 {
			q.running = false
			c.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		c.mu.Unlock()

		c.sem <- struct{}{}
		c.runCycle(req)
		<-c.sem
	}
}

// runCycle executes one full scan-strategize-persist-seed lifecycle.
func (c *Coordinator) runCycle(req Request) {
	log := zap.L().With(zap.String("subject", req.SubjectID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("loop: cycle panicked", zap.Any("panic", r))
			c.publish(req.SubjectID, model.PhaseError, 0, fmt.Sprintf("cycle panicked: %v", r), nil)
		}
	}()

	if c.BeforeLifecycle != nil {
		c.BeforeLifecycle(req.SubjectID)
	}

	ctx := req.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	profile := req.Profile
	if profile == nil {
		loaded, err := c.store.LoadProfile(ctx, req.SubjectID)
		if err != nil {
			log.Error("loop: load profile failed", zap.Error(err))
			c.publish(req.SubjectID, model.PhaseError, 0, "profile load failed: "+err.Error(), nil)
			return
		}
		if loaded == nil {
			c.publish(req.SubjectID, model.PhaseError, 0, "no profile for subject", nil)
			return
		}
		profile = loaded
	}

	c.publish(req.SubjectID, model.PhaseScanning, 25, "scanning for violations", nil)
	violations := c.violations.ScanProfile(profile, req.AffectedEntityIDs)
	log.Info("loop: scan complete", zap.Int("violations", len(violations)))

	// Decay runs exactly once per cycle per entity, before generation.
	for i := range profile.Tradelines {
		if err := c.strategies.DecayHistory(ctx, profile.Tradelines[i].ID); err != nil {
			log.Warn("loop: history decay failed",
				zap.String("entity", profile.Tradelines[i].ID),
				zap.Error(err),
			)
		}
	}

	c.publish(req.SubjectID, model.PhaseStrategizing, 50, "generating strategies", nil)
	strategies, err := c.strategies.GenerateStrategies(ctx, profile)
	if err != nil {
		log.Error("loop: strategy generation failed", zap.Error(err))
		c.publish(req.SubjectID, model.PhaseError, 50, "strategy generation failed: "+err.Error(), nil)
		return
	}

	violationIndex := orchestrate.IndexViolations(profile.ActiveViolations)
	fp := Fingerprint(strategies, violationIndex)
	c.mu.Lock()
	last := c.lastFingerprint[req.SubjectID]
	c.mu.Unlock()
	if fp == last {
		log.Info("loop: strategy set unchanged, skipping downstream", zap.String("fingerprint", fp))
		c.publish(req.SubjectID, model.PhaseComplete, 100, "no substantive change", map[string]any{
			"skipped":     true,
			"fingerprint": fp,
		})
		return
	}

	c.publish(req.SubjectID, model.PhasePersisting, 75, "persisting profile", nil)
	profile.RefreshSummary()
	profile.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveProfile(ctx, profile); err != nil {
		log.Error("loop: save profile failed", zap.Error(err))
		c.publish(req.SubjectID, model.PhaseError, 75, "profile save failed: "+err.Error(), nil)
		return
	}

	if len(strategies) > 0 {
		plan, err := orchestrate.BuildPlan(req.SubjectID, fp, strategies, violationIndex)
		if err != nil {
			log.Error("loop: plan build failed", zap.Error(err))
			c.publish(req.SubjectID, model.PhaseError, 85, "plan build failed: "+err.Error(), nil)
			return
		}
		if err := c.store.SavePlan(ctx, plan); err != nil {
			log.Error("loop: plan save failed", zap.Error(err))
			c.publish(req.SubjectID, model.PhaseError, 85, "plan save failed: "+err.Error(), nil)
			return
		}
		c.publish(req.SubjectID, model.PhaseSeeding, 90, "seeding orchestration plan", map[string]any{
			"plan_id": plan.ID,
			"steps":   len(plan.Steps),
		})
		if err := c.executor.Seed(ctx, plan); err != nil {
			log.Error("loop: plan seed failed", zap.Error(err))
			c.publish(req.SubjectID, model.PhaseError, 90, "plan seed failed: "+err.Error(), nil)
			return
		}
	}

	c.mu.Lock()
	c.lastFingerprint[req.SubjectID] = fp
	c.mu.Unlock()

	c.publish(req.SubjectID, model.PhaseComplete, 100, "cycle complete", map[string]any{
		"violations":  len(profile.ActiveViolations),
		"strategies":  len(strategies),
		"fingerprint": fp,
	})
}

// OnPlanCompleted feeds executor results into the learning state and
// schedules a follow-up cycle over the affected entities. Wire this as the
// executor's completion callback.
func (c *Coordinator) OnPlanCompleted(subjectID string, outcomes []model.StepOutcome) {
	ctx := context.Background()
	affected := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		affected = append(affected, out.TargetEntityID)
		for _, ruleID := range out.RuleIDs {
			if err := c.strategies.RecordOutcome(ctx, out.TargetEntityID, ruleID, out.StrategyType, out.Outcome); err != nil {
				zap.L().Error("loop: record outcome failed",
					zap.String("entity", out.TargetEntityID),
					zap.Error(err),
				)
			}
		}
	}
	if err := c.Enqueue(ctx, Request{SubjectID: subjectID, AffectedEntityIDs: affected}); err != nil {
		zap.L().Error("loop: follow-up enqueue failed", zap.String("subject", subjectID), zap.Error(err))
	}
}

// RecordOutcome registers an externally observed result (e.g. a furnisher
// response arriving days later) and schedules a re-evaluation cycle.
func (c *Coordinator) RecordOutcome(ctx context.Context, subjectID, entityID string, ruleID model.RuleID, t model.StrategyType, outcome model.OutcomeType) error {
	if err := c.strategies.RecordOutcome(ctx, entityID, ruleID, t, outcome); err != nil {
		return err
	}
	return c.Enqueue(ctx, Request{SubjectID: subjectID, AffectedEntityIDs: []string{entityID}})
}

func (c *Coordinator) publish(subjectID string, phase model.LifecyclePhase, progress int, msg string, payload map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(model.LifecycleEvent{
		SubjectID: subjectID,
		Phase:     phase,
		Progress:  progress,
		Message:   msg,
		Payload:   payload,
	})
}
