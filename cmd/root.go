package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fairline",
	Short: "Credit-report compliance intelligence",
	Long:  "Extracts structured tradelines from consumer credit reports, detects FCRA/FDCPA/Metro-2 violations, and generates prioritized enforcement strategies informed by execution history.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
