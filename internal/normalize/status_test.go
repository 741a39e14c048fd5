package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairline-labs/fairline/internal/model"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want model.Metro2Code
	}{
		{"Charged off as bad debt", model.Metro2ChargeOff},
		{"CHARGE-OFF", model.Metro2ChargeOff},
		{"Placed for collection", model.Metro2Collection},
		{"120 days past due", model.Metro2Late120},
		{"90 days delinquent", model.Metro2Late90},
		{"60 days past due", model.Metro2Late60},
		{"30 days late", model.Metro2Late30},
		{"Late payment reported", model.Metro2Late30},
		{"Paid, Closed", model.Metro2PaidClosed},
		{"Account closed by consumer", model.Metro2PaidClosed},
		{"Pays as agreed", model.Metro2Current},
		{"Current", model.Metro2Current},
		{"something the bureau made up", model.Metro2Unknown},
		{"", model.Metro2Unknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapStatus(tc.raw), "raw=%q", tc.raw)
	}
}

func TestStatusReadsCurrent(t *testing.T) {
	assert.True(t, StatusReadsCurrent("Current"))
	assert.True(t, StatusReadsCurrent("Pays as agreed"))
	assert.True(t, StatusReadsCurrent("OK"))
	assert.True(t, StatusReadsCurrent("paid as agreed / ok"))
	assert.False(t, StatusReadsCurrent("broke"))
	assert.False(t, StatusReadsCurrent("charge off"))
	assert.False(t, StatusReadsCurrent(""))
}
