package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairline-labs/fairline/internal/model"
)

func tl(creditor, acct string, balance float64, opened time.Time, conf int, source string) model.Tradeline {
	t := model.Tradeline{ID: source}
	t.Creditor = model.NewField(creditor, creditor, conf, source)
	if acct != "" {
		t.AccountNumber = model.NewField(acct, acct, conf, source)
	}
	t.Balance = model.NewField(balance, "", conf, source)
	if !opened.IsZero() {
		t.DateOpened = model.NewField(opened, "", conf, source)
	}
	return t
}

func TestDigitRunOverlap(t *testing.T) {
	assert.Equal(t, 4, digitRunOverlap("****1234", "XXXX-1234"))
	assert.Equal(t, 6, digitRunOverlap("441234567", "123456"))
	assert.Equal(t, 0, digitRunOverlap("****", "1234"))
	assert.Equal(t, 2, digitRunOverlap("12", "312x"))
}

func TestDedupe_AccountNumberOverlap(t *testing.T) {
	r := NewResolver(nil)
	a := tl("Chase Bank", "****5678", 900, time.Time{}, 80, "chunk-1")
	b := tl("JPMCB", "xxxx5678", 900, time.Time{}, 70, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, "chunk-1", out[0].ID, "existing record is kept")
}

func TestDedupe_ShortDigitRunIsNotAMatch(t *testing.T) {
	r := NewResolver(nil)
	a := tl("Chase", "***123", 900, time.Time{}, 80, "chunk-1")
	b := tl("Discover", "***123", 900, time.Time{}, 80, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	assert.Len(t, out, 2)
}

func TestDedupe_NameDateBalanceMatch(t *testing.T) {
	opened := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(nil)
	a := tl("BOFA", "", 1000, opened, 80, "chunk-1")
	b := tl("Bank of America", "", 1049, opened, 70, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	assert.Len(t, out, 1)
}

func TestDedupe_BalanceDeltaTooLarge(t *testing.T) {
	opened := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(nil)
	a := tl("BOFA", "", 1000, opened, 80, "chunk-1")
	b := tl("Bank of America", "", 1050, opened, 70, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	assert.Len(t, out, 2, "delta of exactly $50 is not within tolerance")
}

func TestDedupe_MergeKeepsHigherConfidenceFields(t *testing.T) {
	r := NewResolver(nil)
	a := tl("Chase", "****5678", 900, time.Time{}, 60, "chunk-1")
	a.PastDue = model.NewField(0.0, "", 60, "chunk-1")
	b := tl("JPMorgan Chase", "5678", 950, time.Time{}, 75, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, 950.0, out[0].Balance.Value, "higher-confidence balance replaces")
	assert.Equal(t, "chunk-1+chunk-2", out[0].Balance.Source, "provenance concatenated")
}

func TestDedupe_HighTrustDisagreementFreezes(t *testing.T) {
	r := NewResolver(nil)
	a := tl("Chase", "****5678", 900, time.Time{}, 85, "chunk-1")
	b := tl("Chase", "5678", 1500, time.Time{}, 92, "chunk-2")

	out := r.Dedupe([]model.Tradeline{a, b})
	require.Len(t, out, 1)
	assert.True(t, out[0].Balance.Conflict)
	assert.Equal(t, model.ConflictRaw, out[0].Balance.Raw)
	assert.Equal(t, 92, out[0].Balance.Confidence)
}

func TestDedupe_NothingDropped(t *testing.T) {
	r := NewResolver(nil)
	lines := []model.Tradeline{
		tl("Chase", "1111", 100, time.Time{}, 80, "a"),
		tl("Citi", "2222", 200, time.Time{}, 80, "b"),
		tl("Amex", "3333", 300, time.Time{}, 80, "c"),
	}
	out := r.Dedupe(lines)
	assert.Len(t, out, 3)
}
