package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fairline-labs/fairline/internal/model"
)

var (
	outcomeSubject  string
	outcomeEntity   string
	outcomeRule     string
	outcomeStrategy string
	outcomeResult   string
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record a furnisher or bureau response and re-evaluate",
	Long:  "Registers the result of one executed enforcement action against an (entity, rule) pair. Substantive outcomes start the cooldown window and feed the drift model; a targeted re-evaluation cycle runs immediately after.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result := model.OutcomeType(outcomeResult)
		switch result {
		case model.OutcomeSuccess, model.OutcomeLegalRejection, model.OutcomeSystemError:
		default:
			return eris.Errorf("unknown outcome %q (want SUCCESS, LEGAL_REJECTION, or SYSTEM_ERROR)", outcomeResult)
		}

		env, err := initLoop(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		err = env.Coordinator.RecordOutcome(ctx, outcomeSubject, outcomeEntity,
			model.RuleID(outcomeRule), model.StrategyType(outcomeStrategy), result)
		if err != nil {
			return err
		}
		env.Coordinator.Wait()

		fmt.Printf("recorded %s for entity %s rule %s, re-evaluation complete\n", result, outcomeEntity, outcomeRule)
		return nil
	},
}

func init() {
	outcomeCmd.Flags().StringVar(&outcomeSubject, "subject", "", "subject id (required)")
	outcomeCmd.Flags().StringVar(&outcomeEntity, "entity", "", "target tradeline id (required)")
	outcomeCmd.Flags().StringVar(&outcomeRule, "rule", "", "rule id the action addressed (required)")
	outcomeCmd.Flags().StringVar(&outcomeStrategy, "strategy", string(model.StrategyDispute), "strategy type that was executed")
	outcomeCmd.Flags().StringVar(&outcomeResult, "result", "", "SUCCESS, LEGAL_REJECTION, or SYSTEM_ERROR (required)")
	_ = outcomeCmd.MarkFlagRequired("subject")
	_ = outcomeCmd.MarkFlagRequired("entity")
	_ = outcomeCmd.MarkFlagRequired("rule")
	_ = outcomeCmd.MarkFlagRequired("result")
	rootCmd.AddCommand(outcomeCmd)
}
