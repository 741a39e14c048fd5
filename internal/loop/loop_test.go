package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/strategy"
	"github.com/fairline-labs/fairline/internal/violation"
)

// fakeStore is an in-memory Store for coordinator tests.
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[string]*model.UserCreditProfile
	outcomes  map[string][]model.OutcomeEntry
	plans     []model.Plan
	saveOrder []string
	failSave  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*model.UserCreditProfile),
		outcomes: make(map[string][]model.OutcomeEntry),
	}
}

func (f *fakeStore) SaveProfile(_ context.Context, p *model.UserCreditProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return eris.New("disk full")
	}
	cp := *p
	f.profiles[p.SubjectID] = &cp
	if len(p.Tradelines) > 0 {
		f.saveOrder = append(f.saveOrder, p.Tradelines[0].ID)
	}
	return nil
}

func (f *fakeStore) LoadProfile(_ context.Context, subjectID string) (*model.UserCreditProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[subjectID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListSubjects(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.profiles {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeStore) AppendOutcome(_ context.Context, e model.OutcomeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[e.EntityID] = append(f.outcomes[e.EntityID], e)
	return nil
}

func (f *fakeStore) ListOutcomes(_ context.Context, entityID string) ([]model.OutcomeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.OutcomeEntry(nil), f.outcomes[entityID]...), nil
}

func (f *fakeStore) DecayOutcomes(_ context.Context, _ string) (int, error) { return 0, nil }

func (f *fakeStore) OutcomeTotals(_ context.Context) (map[model.OutcomeType]int, error) {
	return nil, nil
}

func (f *fakeStore) SavePlan(_ context.Context, p *model.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plans = append(f.plans, *p)
	return nil
}

func (f *fakeStore) ListPlans(_ context.Context, _ string) ([]model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Plan(nil), f.plans...), nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

func (f *fakeStore) savedOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.saveOrder...)
}

func (f *fakeStore) planCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plans)
}

// noopExecutor accepts plans without running anything.
type noopExecutor struct {
	mu    sync.Mutex
	plans []*model.Plan
}

func (e *noopExecutor) Seed(_ context.Context, p *model.Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plans = append(e.plans, p)
	return nil
}

func (e *noopExecutor) seeded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.plans)
}

func newTestCoordinator(st *fakeStore) (*Coordinator, *noopExecutor) {
	exec := &noopExecutor{}
	coord := NewCoordinator(
		st,
		violation.NewEngine(),
		strategy.NewEngine(strategy.NewMemoryHistory()),
		exec,
		NewBus(),
		4,
	)
	return coord, exec
}

// profileWith builds a profile whose single tradeline reports a zero balance
// with money past due, which always yields an actionable violation.
func profileWith(subjectID, tradelineID string) *model.UserCreditProfile {
	now := time.Now().UTC()
	return &model.UserCreditProfile{
		SubjectID: subjectID,
		Tradelines: []model.Tradeline{{
			ID:         tradelineID,
			SubjectID:  subjectID,
			Creditor:   model.NewField("CAPITAL ONE", "Capital One", 95, "report-1"),
			Balance:    model.NewField(0.0, "$0", 100, "report-1"),
			PastDue:    model.NewField(500.0, "$500", 100, "report-1"),
			ReportedAt: now,
		}},
	}
}

func TestFingerprintStableAcrossOrderAndIDs(t *testing.T) {
	index := map[string]model.Violation{
		"v1": {ID: "v1", RuleID: model.RuleBalancePastDue},
		"v2": {ID: "v2", RuleID: model.RuleMissingOpenDate},
		"v3": {ID: "v3", RuleID: model.RuleChargeOffStatus},
	}
	a := model.EnforcementStrategy{Type: model.StrategyDispute, TargetEntityID: "tl-1", ViolationIDs: []string{"v2", "v1"}}
	b := model.EnforcementStrategy{Type: model.StrategyCFPBComplaint, TargetEntityID: "tl-2", ViolationIDs: []string{"v3"}}

	fp1 := Fingerprint([]model.EnforcementStrategy{a, b}, index)
	fp2 := Fingerprint([]model.EnforcementStrategy{b, {
		Type: a.Type, TargetEntityID: a.TargetEntityID, ViolationIDs: []string{"v1", "v2"},
	}}, index)
	assert.Equal(t, fp1, fp2)

	// Violation instances re-minted on a later scan hash identically as long
	// as the rules behind them are the same.
	remint := map[string]model.Violation{
		"x1": {ID: "x1", RuleID: model.RuleBalancePastDue},
		"x2": {ID: "x2", RuleID: model.RuleMissingOpenDate},
		"x3": {ID: "x3", RuleID: model.RuleChargeOffStatus},
	}
	fp3 := Fingerprint([]model.EnforcementStrategy{
		{Type: a.Type, TargetEntityID: "tl-1", ViolationIDs: []string{"x1", "x2"}},
		{Type: b.Type, TargetEntityID: "tl-2", ViolationIDs: []string{"x3"}},
	}, remint)
	assert.Equal(t, fp1, fp3)

	// Substance changes move the fingerprint.
	b.TargetEntityID = "tl-9"
	assert.NotEqual(t, fp1, Fingerprint([]model.EnforcementStrategy{a, b}, index))
	assert.NotEqual(t, fp1, Fingerprint(nil, nil))
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("subj-1")
	defer cancel()

	bus.Publish(model.LifecycleEvent{SubjectID: "subj-1", Phase: model.PhaseScanning})
	bus.Publish(model.LifecycleEvent{SubjectID: "other", Phase: model.PhaseError})

	select {
	case ev := <-ch:
		assert.Equal(t, model.PhaseScanning, ev.Phase)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other subject: %+v", ev)
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("subj-1")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	bus.Publish(model.LifecycleEvent{SubjectID: "subj-1", Phase: model.PhaseComplete})
}

func TestCoordinatorRunsFullCycle(t *testing.T) {
	st := newFakeStore()
	coord, exec := newTestCoordinator(st)

	ch, cancel := coord.Events().Subscribe("subj-1")
	defer cancel()

	require.NoError(t, coord.Enqueue(context.Background(), Request{
		SubjectID: "subj-1",
		Profile:   profileWith("subj-1", "tl-1"),
	}))
	coord.Wait()

	saved, err := st.LoadProfile(context.Background(), "subj-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.ActiveViolations)
	require.Len(t, saved.ActiveStrategies, 1)
	assert.Equal(t, model.StrategyCFPBComplaint, saved.ActiveStrategies[0].Type)
	assert.Equal(t, 1, saved.Summary.StrategyCount)

	assert.Equal(t, 1, exec.seeded())
	assert.Equal(t, 1, st.planCount())

	var phases []model.LifecyclePhase
	for len(ch) > 0 {
		phases = append(phases, (<-ch).Phase)
	}
	assert.Equal(t, []model.LifecyclePhase{
		model.PhaseQueued, model.PhaseScanning, model.PhaseStrategizing,
		model.PhasePersisting, model.PhaseSeeding, model.PhaseComplete,
	}, phases)
}

func TestCoordinatorSerializesPerSubject(t *testing.T) {
	st := newFakeStore()
	coord, _ := newTestCoordinator(st)

	var mu sync.Mutex
	active := 0
	maxActive := 0
	coord.BeforeLifecycle = func(string) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	// Each update carries a distinct tradeline so every cycle has a fresh
	// fingerprint and persists.
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, coord.Enqueue(context.Background(), Request{
			SubjectID: "subj-1",
			Profile:   profileWith("subj-1", "tl-"+id),
		}))
	}
	coord.Wait()

	assert.Equal(t, 1, maxActive, "cycles for one subject must never overlap")
	assert.Equal(t, []string{"tl-a", "tl-b", "tl-c", "tl-d", "tl-e"}, st.savedOrder())
}

func TestCoordinatorSkipsUnchangedStrategySet(t *testing.T) {
	st := newFakeStore()
	coord, exec := newTestCoordinator(st)

	require.NoError(t, coord.Enqueue(context.Background(), Request{
		SubjectID: "subj-1",
		Profile:   profileWith("subj-1", "tl-1"),
	}))
	coord.Wait()

	ch, cancel := coord.Events().Subscribe("subj-1")
	defer cancel()

	// Same profile content again: identical strategy substance.
	require.NoError(t, coord.Enqueue(context.Background(), Request{
		SubjectID: "subj-1",
		Profile:   profileWith("subj-1", "tl-1"),
	}))
	coord.Wait()

	assert.Equal(t, 1, exec.seeded(), "unchanged set must not reseed")
	assert.Equal(t, 1, st.planCount())

	var last model.LifecycleEvent
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, model.PhaseComplete, last.Phase)
	assert.Equal(t, true, last.Payload["skipped"])
}

func TestCoordinatorSaveFailureAborts(t *testing.T) {
	st := newFakeStore()
	st.failSave = true
	coord, exec := newTestCoordinator(st)

	ch, cancel := coord.Events().Subscribe("subj-1")
	defer cancel()

	require.NoError(t, coord.Enqueue(context.Background(), Request{
		SubjectID: "subj-1",
		Profile:   profileWith("subj-1", "tl-1"),
	}))
	coord.Wait()

	assert.Equal(t, 0, exec.seeded(), "seeding must not happen after a failed save")

	var sawError bool
	for len(ch) > 0 {
		if (<-ch).Phase == model.PhaseError {
			sawError = true
		}
	}
	assert.True(t, sawError)

	// The failed cycle must not record its fingerprint: once the store
	// recovers the same update goes through in full.
	st.mu.Lock()
	st.failSave = false
	st.mu.Unlock()
	require.NoError(t, coord.Enqueue(context.Background(), Request{
		SubjectID: "subj-1",
		Profile:   profileWith("subj-1", "tl-1"),
	}))
	coord.Wait()
	assert.Equal(t, 1, exec.seeded())
}

func TestCoordinatorMissingProfile(t *testing.T) {
	st := newFakeStore()
	coord, _ := newTestCoordinator(st)

	ch, cancel := coord.Events().Subscribe("ghost")
	defer cancel()

	require.NoError(t, coord.Enqueue(context.Background(), Request{SubjectID: "ghost"}))
	coord.Wait()

	var sawError bool
	for len(ch) > 0 {
		if (<-ch).Phase == model.PhaseError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestOnPlanCompletedFeedsLearningAndRequeues(t *testing.T) {
	st := newFakeStore()
	history := strategy.NewMemoryHistory()
	exec := &noopExecutor{}
	coord := NewCoordinator(st, violation.NewEngine(), strategy.NewEngine(history), exec, NewBus(), 2)

	// Seed a stored profile so the follow-up cycle has something to load.
	require.NoError(t, st.SaveProfile(context.Background(), profileWith("subj-1", "tl-1")))

	coord.OnPlanCompleted("subj-1", []model.StepOutcome{{
		SkillID:        model.SkillFileCFPBComplaint,
		TargetEntityID: "tl-1",
		RuleIDs:        []model.RuleID{model.RuleBalancePastDue},
		StrategyType:   model.StrategyCFPBComplaint,
		Outcome:        model.OutcomeSuccess,
	}})
	coord.Wait()

	entries, err := history.ForEntity(context.Background(), "tl-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeSuccess, entries[0].Outcome)

	// The follow-up cycle ran and persisted strategies.
	saved, err := st.LoadProfile(context.Background(), "subj-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotNil(t, saved.ActiveStrategies)
}

func TestRecordOutcomeTriggersReevaluation(t *testing.T) {
	st := newFakeStore()
	history := strategy.NewMemoryHistory()
	exec := &noopExecutor{}
	coord := NewCoordinator(st, violation.NewEngine(), strategy.NewEngine(history), exec, NewBus(), 2)

	require.NoError(t, st.SaveProfile(context.Background(), profileWith("subj-1", "tl-1")))

	err := coord.RecordOutcome(context.Background(), "subj-1", "tl-1",
		model.RuleBalancePastDue, model.StrategyCFPBComplaint, model.OutcomeLegalRejection)
	require.NoError(t, err)
	coord.Wait()

	entries, err := history.ForEntity(context.Background(), "tl-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	saved, err := st.LoadProfile(context.Background(), "subj-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Len(t, saved.ActiveStrategies, 1)
	// The rejected rule sits in cooldown, so only the remaining low-severity
	// finding is actionable: dispute tier at 55, minus 15 drift.
	assert.Equal(t, model.StrategyDispute, saved.ActiveStrategies[0].Type)
	assert.Equal(t, 40, saved.ActiveStrategies[0].RemovalProbability)
}
