package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/loop"
	"github.com/fairline-labs/fairline/internal/orchestrate"
	"github.com/fairline-labs/fairline/internal/resolve"
	"github.com/fairline-labs/fairline/internal/store"
	"github.com/fairline-labs/fairline/internal/strategy"
	"github.com/fairline-labs/fairline/internal/violation"
)

// loopEnv bundles the store, engines, and coordinator a command needs.
// Callers should defer env.Close().
type loopEnv struct {
	Store       store.Store
	Resolver    *resolve.Resolver
	Violations  *violation.Engine
	Strategies  *strategy.Engine
	Registry    *orchestrate.Registry
	Executor    *orchestrate.LocalExecutor
	Bus         *loop.Bus
	Coordinator *loop.Coordinator
}

func (e *loopEnv) Close() {
	// Seeded plans execute asynchronously and their completions enqueue
	// follow-up cycles, so alternate until both sides are quiescent.
	for e.Coordinator != nil {
		e.Coordinator.Wait()
		if e.Executor == nil || e.Executor.InFlight() == 0 {
			break
		}
		e.Executor.Wait()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initLoop sets up the store, resolver, engines, and the intelligence loop.
func initLoop(ctx context.Context) (*loopEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	aliases := resolve.NewAliasTable()
	if cfg.Resolve.AliasOverridesPath != "" {
		if err := aliases.LoadOverrides(cfg.Resolve.AliasOverridesPath); err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("alias overrides loaded", zap.String("path", cfg.Resolve.AliasOverridesPath))
	}

	violations := violation.NewEngine()
	strategies := strategy.NewEngine(store.OutcomeHistory{Store: st})
	registry := orchestrate.NewRegistry()
	bus := loop.NewBus()

	// The executor reports plan completions back into the coordinator, so
	// its callback is wired after construction.
	executor := orchestrate.NewLocalExecutor(registry, cfg.Loop.StepsPerSecond, nil)
	coordinator := loop.NewCoordinator(st, violations, strategies, executor, bus, cfg.Loop.Workers)
	executor.SetCompletion(coordinator.OnPlanCompleted)

	return &loopEnv{
		Store:       st,
		Resolver:    resolve.NewResolver(aliases),
		Violations:  violations,
		Strategies:  strategies,
		Registry:    registry,
		Executor:    executor,
		Bus:         bus,
		Coordinator: coordinator,
	}, nil
}
