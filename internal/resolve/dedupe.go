package resolve

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/normalize"
)

const (
	// minDigitRun is the shortest shared account-number digit run that
	// counts as an identity match after masking characters are stripped.
	minDigitRun = 4
	// balanceTolerance is the max dollar delta for the name+date duplicate test.
	balanceTolerance = 50.0
)

// Resolver collapses duplicate tradeline extractions into one canonical
// record per logical account. Nothing is dropped, only merged.
type Resolver struct {
	aliases *AliasTable
}

// NewResolver builds a resolver over the given alias table.
func NewResolver(aliases *AliasTable) *Resolver {
	if aliases == nil {
		aliases = NewAliasTable()
	}
	return &Resolver{aliases: aliases}
}

// Dedupe folds each incoming tradeline into the first existing record it
// duplicates, preserving input order for canonical records.
func (r *Resolver) Dedupe(lines []model.Tradeline) []model.Tradeline {
	out := make([]model.Tradeline, 0, len(lines))
	merged := 0
	for _, incoming := range lines {
		idx := -1
		for i := range out {
			if r.isDuplicate(&out[i], &incoming) {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, incoming)
			continue
		}
		mergeTradeline(&out[idx], &incoming)
		merged++
	}
	if merged > 0 {
		zap.L().Info("resolve: merged duplicate tradelines",
			zap.Int("input", len(lines)),
			zap.Int("canonical", len(out)),
			zap.Int("merged", merged),
		)
	}
	return out
}

// isDuplicate applies the two-part duplicate test; either condition suffices.
func (r *Resolver) isDuplicate(a, b *model.Tradeline) bool {
	// Condition 1: account-number digit runs overlap.
	if digitRunOverlap(a.AccountNumber.Value, b.AccountNumber.Value) >= minDigitRun {
		return true
	}

	// Condition 2: same creditor, same open date, balances within tolerance.
	if !r.aliases.SameCreditor(a.Creditor.Value, b.Creditor.Value) {
		return false
	}
	if a.DateOpened.IsZero() || b.DateOpened.IsZero() {
		return false
	}
	if !a.DateOpened.Value.Equal(b.DateOpened.Value) {
		return false
	}
	return math.Abs(a.Balance.Value-b.Balance.Value) < balanceTolerance
}

// digitRunOverlap strips masking characters from both account numbers and
// returns the length of the longest shared digit run.
func digitRunOverlap(a, b string) int {
	da, db := digitsOf(a), digitsOf(b)
	if da == "" || db == "" {
		return 0
	}
	// Longest common substring over digit strings; account numbers are
	// short, the quadratic table is fine.
	prev := make([]int, len(db)+1)
	cur := make([]int, len(db)+1)
	best := 0
	for i := 1; i <= len(da); i++ {
		for j := 1; j <= len(db); j++ {
			if da[i-1] == db[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}

func digitsOf(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// mergeTradeline folds src into dst. Per attribute the higher-confidence
// reading wins; two high-trust disagreeing readings freeze the field to the
// conflict sentinel. Provenance strings are concatenated, never overwritten.
func mergeTradeline(dst, src *model.Tradeline) {
	dst.Creditor = mergeField(dst.Creditor, src.Creditor, nil)
	dst.AccountNumber = mergeField(dst.AccountNumber, src.AccountNumber, nil)
	dst.AccountType = mergeField(dst.AccountType, src.AccountType, nil)

	dst.Balance = mergeField(dst.Balance, src.Balance, nil)
	dst.CreditLimit = mergeField(dst.CreditLimit, src.CreditLimit, nil)
	dst.PastDue = mergeField(dst.PastDue, src.PastDue, nil)

	timeEq := func(x, y time.Time) bool { return x.Equal(y) }
	dst.DateOpened = mergeField(dst.DateOpened, src.DateOpened, timeEq)
	dst.DateClosed = mergeField(dst.DateClosed, src.DateClosed, timeEq)
	dst.LastActivity = mergeField(dst.LastActivity, src.LastActivity, timeEq)

	dst.StatusText = mergeField(dst.StatusText, src.StatusText, nil)
	if !dst.StatusText.Conflict {
		dst.Metro2 = normalize.MapStatus(dst.StatusText.Value)
	}

	if src.ReportedAt.After(dst.ReportedAt) {
		dst.ReportedAt = src.ReportedAt
	}
}

func mergeField[T comparable](existing, incoming model.Field[T], equal func(x, y T) bool) model.Field[T] {
	merged := normalize.Resolve(existing, incoming, equal)
	if !existing.IsZero() && !incoming.IsZero() {
		merged.Source = mergeSources(existing.Source, incoming.Source)
	}
	return merged
}

func mergeSources(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	default:
		return a + "+" + b
	}
}
