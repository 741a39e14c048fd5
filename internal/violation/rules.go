package violation

import (
	"fmt"
	"time"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/normalize"
)

// rule is one deterministic per-tradeline check. evaluate returns nil when
// the rule does not fire; otherwise a finding with its contributing field
// confidences (pre-staleness).
type rule struct {
	id       model.RuleID
	severity model.Severity
	statute  string
	remedy   string
	evaluate func(tl *model.Tradeline) *finding
}

// finding carries rule output before confidence weighting.
type finding struct {
	description string
	// confA and confB are the confidences of the two contributing fields.
	confA, confB int
}

// ruleTable is the closed set of detection rules, evaluated in order.
var ruleTable = []rule{
	{
		id:       model.RuleBalancePastDue,
		severity: model.SeverityHigh,
		statute:  "15 U.S.C. § 1681s-2(a)(1)(A)",
		remedy:   "Dispute with furnisher; demand correction of the past-due amount or deletion of the tradeline.",
		evaluate: func(tl *model.Tradeline) *finding {
			if tl.Balance.IsZero() || tl.PastDue.IsZero() {
				return nil
			}
			if tl.Balance.Conflict || tl.PastDue.Conflict {
				return nil
			}
			if tl.Balance.Value == 0 && tl.PastDue.Value > 0 {
				return &finding{
					description: fmt.Sprintf("Zero balance reported alongside a past-due amount of $%.2f.", tl.PastDue.Value),
					confA:       tl.Balance.Confidence,
					confB:       tl.PastDue.Confidence,
				}
			}
			return nil
		},
	},
	{
		id:       model.RuleClosedDerog,
		severity: model.SeverityMedium,
		statute:  "15 U.S.C. § 1681e(b)",
		remedy:   "Dispute with the bureau; closed accounts may not continue to report an active delinquency status.",
		evaluate: func(tl *model.Tradeline) *finding {
			if tl.DateClosed.IsZero() || !tl.Metro2.IsLateFamily() {
				return nil
			}
			return &finding{
				description: fmt.Sprintf("Account closed %s still reports active delinquency status %s.",
					tl.DateClosed.Value.Format("2006-01-02"), tl.Metro2),
				confA: tl.DateClosed.Confidence,
				confB: tl.StatusText.Confidence,
			}
		},
	},
	{
		id:       model.RuleChargeOffStatus,
		severity: model.SeverityHigh,
		statute:  "15 U.S.C. § 1681s-2(a)(1)(A)",
		remedy:   "Dispute the internally inconsistent status; demand re-verification under § 1681i.",
		evaluate: func(tl *model.Tradeline) *finding {
			if tl.Metro2 != model.Metro2ChargeOff {
				return nil
			}
			if !normalize.StatusReadsCurrent(tl.StatusText.Raw) {
				return nil
			}
			return &finding{
				description: "Metro-2 status is charge-off but the reported status text reads current/OK.",
				confA:       tl.StatusText.Confidence,
				confB:       tl.StatusText.Confidence,
			}
		},
	},
	{
		id:       model.RuleMissingOpenDate,
		severity: model.SeverityLow,
		statute:  "15 U.S.C. § 1681e(b)",
		remedy:   "Request completion of the record; incomplete tradelines fail maximum-possible-accuracy requirements.",
		evaluate: func(tl *model.Tradeline) *finding {
			if !tl.DateOpened.IsZero() {
				return nil
			}
			// Only meaningful on an otherwise-populated record.
			if tl.Creditor.IsZero() || tl.Balance.IsZero() {
				return nil
			}
			return &finding{
				description: "Tradeline is populated but reports no open date.",
				confA:       tl.Creditor.Confidence,
				confB:       tl.Balance.Confidence,
			}
		},
	},
}

// stalenessPenalty weakens findings on old records: −30 past 120 days,
// −15 past 90 days.
func stalenessPenalty(tl *model.Tradeline, now time.Time) int {
	age := tl.AgeDays(now)
	switch {
	case age > 120:
		return 30
	case age > 90:
		return 15
	default:
		return 0
	}
}
