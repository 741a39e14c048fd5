package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export [output.xlsx]",
	Short: "Export all profiles, violations, and strategies to a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		file, rows, err := buildWorkbook(ctx, st)
		if err != nil {
			return err
		}
		if err := file.Save(args[0]); err != nil {
			return eris.Wrapf(err, "save workbook %s", args[0])
		}

		zap.L().Info("export complete", zap.String("path", args[0]), zap.Int("rows", rows))
		fmt.Printf("wrote %d rows to %s\n", rows, args[0])
		return nil
	},
}

// buildWorkbook renders the full corpus into Profiles, Violations, and
// Strategies sheets. Returns the total data row count.
func buildWorkbook(ctx context.Context, st store.Store) (*xlsx.File, int, error) {
	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return nil, 0, eris.Wrap(err, "list subjects")
	}

	file := xlsx.NewFile()

	profiles, err := file.AddSheet("Profiles")
	if err != nil {
		return nil, 0, eris.Wrap(err, "add sheet")
	}
	violations, err := file.AddSheet("Violations")
	if err != nil {
		return nil, 0, eris.Wrap(err, "add sheet")
	}
	strategies, err := file.AddSheet("Strategies")
	if err != nil {
		return nil, 0, eris.Wrap(err, "add sheet")
	}

	addHeader(profiles, "Subject", "Name", "Tradelines", "Violations", "High Severity", "Strategies", "Total Past Due", "Updated At")
	addHeader(violations, "Subject", "Entity", "Rule", "Severity", "Confidence", "Statute", "Description")
	addHeader(strategies, "Subject", "Entity", "Type", "Removal Probability", "Litigation Risk", "Recommended Action")

	rows := 0
	for _, id := range subjects {
		profile, err := st.LoadProfile(ctx, id)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "load profile %s", id)
		}
		if profile == nil {
			continue
		}
		rows += addProfileRows(profiles, violations, strategies, profile)
	}
	return file, rows, nil
}

func addProfileRows(profiles, violations, strategies *xlsx.Sheet, p *model.UserCreditProfile) int {
	row := profiles.AddRow()
	row.AddCell().SetString(p.SubjectID)
	row.AddCell().SetString(p.Identity.Name.Value)
	row.AddCell().SetInt(p.Summary.TradelineCount)
	row.AddCell().SetInt(p.Summary.ViolationCount)
	row.AddCell().SetInt(p.Summary.HighSeverityCount)
	row.AddCell().SetInt(p.Summary.StrategyCount)
	row.AddCell().SetFloat(p.Summary.TotalPastDue)
	row.AddCell().SetString(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	n := 1

	for _, v := range p.ActiveViolations {
		row := violations.AddRow()
		row.AddCell().SetString(p.SubjectID)
		row.AddCell().SetString(v.RelatedEntityID)
		row.AddCell().SetString(string(v.RuleID))
		row.AddCell().SetString(string(v.Severity))
		row.AddCell().SetInt(v.Confidence)
		row.AddCell().SetString(v.Statute)
		row.AddCell().SetString(v.Description)
		n++
	}

	for _, s := range p.ActiveStrategies {
		row := strategies.AddRow()
		row.AddCell().SetString(p.SubjectID)
		row.AddCell().SetString(s.TargetEntityID)
		row.AddCell().SetString(string(s.Type))
		row.AddCell().SetInt(s.RemovalProbability)
		row.AddCell().SetString(string(s.LitigationRisk))
		row.AddCell().SetString(s.RecommendedAction)
		n++
	}
	return n
}

func addHeader(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
