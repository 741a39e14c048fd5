package store

import (
	"context"

	"github.com/fairline-labs/fairline/internal/model"
)

// Store defines the persistence interface for profiles, execution history,
// and orchestration plans.
type Store interface {
	// Profiles
	SaveProfile(ctx context.Context, profile *model.UserCreditProfile) error
	// LoadProfile returns (nil, nil) when no profile exists for the subject.
	LoadProfile(ctx context.Context, subjectID string) (*model.UserCreditProfile, error)
	ListSubjects(ctx context.Context) ([]string, error)

	// Execution history
	AppendOutcome(ctx context.Context, entry model.OutcomeEntry) error
	// ListOutcomes returns an entity's history oldest-first.
	ListOutcomes(ctx context.Context, entityID string) ([]model.OutcomeEntry, error)
	// DecayOutcomes keeps the most recent half of an entity's rejections and
	// returns how many entries were dropped.
	DecayOutcomes(ctx context.Context, entityID string) (int, error)
	OutcomeTotals(ctx context.Context) (map[model.OutcomeType]int, error)

	// Plans
	SavePlan(ctx context.Context, plan *model.Plan) error
	ListPlans(ctx context.Context, subjectID string) ([]model.Plan, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// OutcomeHistory adapts a Store to the strategy engine's history interface.
type OutcomeHistory struct {
	Store Store
}

func (h OutcomeHistory) Append(ctx context.Context, entry model.OutcomeEntry) error {
	return h.Store.AppendOutcome(ctx, entry)
}

func (h OutcomeHistory) ForEntity(ctx context.Context, entityID string) ([]model.OutcomeEntry, error) {
	return h.Store.ListOutcomes(ctx, entityID)
}

func (h OutcomeHistory) Decay(ctx context.Context, entityID string) (int, error) {
	return h.Store.DecayOutcomes(ctx, entityID)
}
