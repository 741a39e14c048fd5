package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairline-labs/fairline/internal/model"
)

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$1,234.56", 1234.56, true},
		{"1234", 1234, true},
		{"  $500 ", 500, true},
		{"(250.00)", -250, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		if ok {
			assert.InDelta(t, tc.want, got, 0.001, "raw=%q", tc.raw)
		}
	}
}

func TestBuildTradeline(t *testing.T) {
	raw := model.RawTradeline{
		Creditor:      "CHASE BANK",
		AccountNumber: "****1234",
		Balance:       "$0",
		PastDue:       "$512.00",
		DateOpened:    "03/2019",
		Status:        "Charged off as bad debt",
		ReportedAt:    "2026-05-20",
		Confidence:    95,
		Source:        "chunk-3",
	}

	tl := BuildTradeline("subj-1", raw, testNow)

	assert.NotEmpty(t, tl.ID)
	assert.Equal(t, "subj-1", tl.SubjectID)
	assert.Equal(t, "CHASE BANK", tl.Creditor.Value)
	assert.Equal(t, 95, tl.Creditor.Confidence, "fresh report, no decay")
	assert.Equal(t, 0.0, tl.Balance.Value)
	assert.Equal(t, 512.0, tl.PastDue.Value)
	assert.Equal(t, model.Metro2ChargeOff, tl.Metro2)
	require.False(t, tl.DateOpened.IsZero())
	assert.Equal(t, "2019-03-01", tl.DateOpened.Value.Format("2006-01-02"))
	assert.True(t, tl.DateClosed.IsZero())
}

func TestBuildTradeline_StaleReportDecays(t *testing.T) {
	raw := model.RawTradeline{
		Creditor:   "CITI",
		Balance:    "100",
		ReportedAt: testNow.AddDate(0, 0, -65).Format("2006-01-02"), // two 30-day periods
		Confidence: 90,
		Source:     "chunk-1",
	}
	tl := BuildTradeline("subj-1", raw, testNow)
	assert.Equal(t, 80, tl.Balance.Confidence)
}

func TestBuildTradeline_UnparseableAmountDegrades(t *testing.T) {
	raw := model.RawTradeline{
		Creditor:   "CITI",
		Balance:    "see attached",
		Confidence: 80,
		Source:     "chunk-1",
	}
	tl := BuildTradeline("subj-1", raw, testNow)
	assert.Equal(t, 0.0, tl.Balance.Value)
	assert.Equal(t, 40, tl.Balance.Confidence)
	assert.Equal(t, "see attached", tl.Balance.Raw)
}

func TestBuildTradelines_DropsAnonymousRecords(t *testing.T) {
	raws := []model.RawTradeline{
		{Creditor: "CHASE", Confidence: 90, Source: "a"},
		{Confidence: 90, Source: "b"}, // no creditor, no account number
	}
	out := BuildTradelines("subj-1", raws, testNow)
	require.Len(t, out, 1)
	assert.Equal(t, "CHASE", out[0].Creditor.Value)
}
