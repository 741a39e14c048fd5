package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/strategy"
)

var (
	simulateRounds       int
	simulateIntervalDays int
	simulateQuietDays    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Print a drift and recovery trajectory for repeated rejections",
	Long:  "Runs the strategy engine against a synthetic single-violation profile with an accelerated clock. Each round records a LEGAL_REJECTION and reports the removal probability, so the drift penalty is visible compounding; a final quiet period shows recovery credits accruing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		now := func() time.Time { return clock }
		engine := strategy.NewEngineAt(strategy.NewMemoryHistory(), now)

		entityID := "sim-" + uuid.New().String()[:8]
		profile := simulationProfile(entityID)

		fmt.Printf("round  date        probability  type\n")
		for round := 1; round <= simulateRounds; round++ {
			strategies, err := engine.GenerateStrategies(ctx, profile)
			if err != nil {
				return err
			}
			if len(strategies) == 0 {
				fmt.Printf("%5d  %s  (cooldown, no action)\n", round, clock.Format("2006-01-02"))
			} else {
				s := strategies[0]
				fmt.Printf("%5d  %s  %11d  %s\n", round, clock.Format("2006-01-02"), s.RemovalProbability, s.Type)
				if err := engine.RecordOutcome(ctx, entityID, model.RuleBalancePastDue, s.Type, model.OutcomeLegalRejection); err != nil {
					return err
				}
			}

			clock = clock.AddDate(0, 0, simulateIntervalDays)
		}

		// Quiet period: no new actions, recovery credits accrue.
		clock = clock.AddDate(0, 0, simulateQuietDays)
		strategies, err := engine.GenerateStrategies(ctx, profile)
		if err != nil {
			return err
		}
		if len(strategies) > 0 {
			fmt.Printf("after %d quiet days: probability %d\n", simulateQuietDays, strategies[0].RemovalProbability)
		}
		return nil
	},
}

// simulationProfile builds a one-tradeline profile carrying a single
// high-confidence HIGH violation, enough to exercise the CFPB tier.
func simulationProfile(entityID string) *model.UserCreditProfile {
	return &model.UserCreditProfile{
		SubjectID: "simulation",
		Tradelines: []model.Tradeline{
			{ID: entityID, SubjectID: "simulation"},
		},
		ActiveViolations: []model.Violation{{
			ID:              uuid.New().String(),
			RuleID:          model.RuleBalancePastDue,
			Severity:        model.SeverityHigh,
			Confidence:      100,
			RelatedEntityID: entityID,
		}},
	}
}

func init() {
	simulateCmd.Flags().IntVar(&simulateRounds, "rounds", 5, "rejection rounds to simulate")
	simulateCmd.Flags().IntVar(&simulateIntervalDays, "interval-days", 45, "days between rounds (cooldown is 30)")
	simulateCmd.Flags().IntVar(&simulateQuietDays, "quiet-days", 365, "quiet period after the last round")
	rootCmd.AddCommand(simulateCmd)
}
