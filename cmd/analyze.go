package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fairline-labs/fairline/internal/extract"
	"github.com/fairline-labs/fairline/internal/loop"
	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/normalize"
	"github.com/fairline-labs/fairline/internal/resolve"
	"github.com/fairline-labs/fairline/pkg/anthropic"
)

var (
	analyzeSubject     string
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file-or-dir]",
	Short: "Ingest credit report documents and run a processing cycle",
	Long:  "Extracts tradelines from one report file or every file in a directory, merges them into the subject's profile, and runs the full scan-strategize-persist cycle.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Anthropic.Key == "" {
			return eris.New("FAIRLINE_ANTHROPIC_KEY is required for extraction")
		}

		sources, err := collectSources(args[0])
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			return eris.Errorf("no report files under %s", args[0])
		}

		env, err := initLoop(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		provider := extract.NewAnthropicProvider(anthropic.NewClient(cfg.Anthropic.Key), extract.Options{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			RequestsPerSecond: cfg.Anthropic.RequestsPerSecond,
		})

		raws, err := extractAll(ctx, provider, sources, analyzeConcurrency)
		if err != nil {
			return err
		}

		fresh := buildSubjectProfile(analyzeSubject, raws, time.Now().UTC())

		existing, err := env.Store.LoadProfile(ctx, analyzeSubject)
		if err != nil {
			return err
		}
		profile := mergeIntoStored(existing, fresh, env.Resolver)

		if err := env.Coordinator.Enqueue(ctx, loop.Request{
			SubjectID: analyzeSubject,
			Profile:   profile,
		}); err != nil {
			return err
		}
		env.Coordinator.Wait()

		final, err := env.Store.LoadProfile(ctx, analyzeSubject)
		if err != nil {
			return err
		}
		if final == nil {
			return eris.New("cycle produced no stored profile")
		}

		fmt.Printf("subject:      %s\n", final.SubjectID)
		fmt.Printf("sources:      %d\n", len(sources))
		fmt.Printf("tradelines:   %d\n", final.Summary.TradelineCount)
		fmt.Printf("violations:   %d (%d high severity)\n", final.Summary.ViolationCount, final.Summary.HighSeverityCount)
		fmt.Printf("strategies:   %d\n", final.Summary.StrategyCount)
		fmt.Printf("past due:     $%.2f\n", final.Summary.TotalPastDue)
		return nil
	},
}

// collectSources expands a path into report files. Directories are read one
// level deep; hidden files are skipped.
func collectSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stat %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", path)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// extractAll runs extraction over every source with bounded concurrency.
func extractAll(ctx context.Context, provider extract.Provider, sources []string, concurrency int) ([]model.RawReport, error) {
	if concurrency <= 0 {
		concurrency = 2
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	raws := make([]model.RawReport, 0, len(sources))

	for _, src := range sources {
		g.Go(func() error {
			data, err := os.ReadFile(src)
			if err != nil {
				return eris.Wrapf(err, "read report %s", src)
			}
			raw, err := provider.ExtractReport(ctx, filepath.Base(src), string(data))
			if err != nil {
				return eris.Wrapf(err, "extract %s", src)
			}
			mu.Lock()
			raws = append(raws, *raw)
			mu.Unlock()
			zap.L().Info("report extracted",
				zap.String("source", src),
				zap.Int("tradelines", len(raw.Tradelines)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raws, nil
}

// buildSubjectProfile merges several extracted reports into one profile. The
// highest-confidence identity wins; tradelines from every source are
// normalized together so the resolver can collapse duplicates.
func buildSubjectProfile(subjectID string, raws []model.RawReport, now time.Time) *model.UserCreditProfile {
	merged := model.RawReport{Scores: make(map[string]int)}
	for _, raw := range raws {
		if raw.Identity.Confidence > merged.Identity.Confidence {
			merged.Identity = raw.Identity
		}
		for bureau, score := range raw.Scores {
			if score > 0 {
				merged.Scores[bureau] = score
			}
		}
		merged.Tradelines = append(merged.Tradelines, raw.Tradelines...)
	}
	if len(merged.Scores) == 0 {
		merged.Scores = nil
	}
	return normalize.BuildProfile(subjectID, merged, now)
}

// mergeIntoStored folds freshly extracted tradelines into the subject's
// stored profile. Stored records go through the resolver first so the merge
// policy keeps their ids, preserving the entity-keyed execution history;
// stored tradelines absent from the new reports stay on the profile
// untouched. Identity fields resolve by confidence like any other reading.
func mergeIntoStored(existing, fresh *model.UserCreditProfile, resolver *resolve.Resolver) *model.UserCreditProfile {
	if existing == nil {
		fresh.Tradelines = resolver.Dedupe(fresh.Tradelines)
		return fresh
	}

	existing.Tradelines = resolver.Dedupe(append(existing.Tradelines, fresh.Tradelines...))

	existing.Identity.Name = normalize.Resolve(existing.Identity.Name, fresh.Identity.Name, nil)
	existing.Identity.Address = normalize.Resolve(existing.Identity.Address, fresh.Identity.Address, nil)
	existing.Identity.SSNLast4 = normalize.Resolve(existing.Identity.SSNLast4, fresh.Identity.SSNLast4, nil)
	existing.Identity.BirthYear = normalize.Resolve(existing.Identity.BirthYear, fresh.Identity.BirthYear, nil)

	if len(fresh.Scores) > 0 && existing.Scores == nil {
		existing.Scores = make(map[string]int, len(fresh.Scores))
	}
	for bureau, score := range fresh.Scores {
		existing.Scores[bureau] = score
	}

	existing.UpdatedAt = fresh.UpdatedAt
	return existing
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSubject, "subject", "", "subject id the reports belong to (required)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 2, "parallel extraction workers")
	_ = analyzeCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(analyzeCmd)
}
