package model

import "time"

// Metro2Code is an account status code from the Metro-2 furnishing format.
// Free-text bureau status descriptions are mapped onto this closed vocabulary.
type Metro2Code string

const (
	Metro2Current    Metro2Code = "11"
	Metro2PaidClosed Metro2Code = "13"
	Metro2Late30     Metro2Code = "71"
	Metro2Late60     Metro2Code = "78"
	Metro2Late90     Metro2Code = "80"
	Metro2Late120    Metro2Code = "82"
	Metro2Collection Metro2Code = "93"
	Metro2ChargeOff  Metro2Code = "97"
	Metro2Unknown    Metro2Code = "XX"
)

// IsLateFamily reports whether the code is in the 30/60/90/120-day
// delinquency family.
func (c Metro2Code) IsLateFamily() bool {
	switch c {
	case Metro2Late30, Metro2Late60, Metro2Late90, Metro2Late120:
		return true
	}
	return false
}

// Tradeline is one reported credit account. Created during normalization,
// mutated by entity resolution (duplicate merges) and by the violation
// engine (violation list replacement). Never deleted within a case lifetime.
type Tradeline struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subject_id"`

	Creditor      Field[string] `json:"creditor"`
	AccountNumber Field[string] `json:"account_number"`
	AccountType   Field[string] `json:"account_type"`

	Balance     Field[float64] `json:"balance"`
	CreditLimit Field[float64] `json:"credit_limit"`
	PastDue     Field[float64] `json:"past_due"`

	DateOpened   Field[time.Time] `json:"date_opened"`
	DateClosed   Field[time.Time] `json:"date_closed"`
	LastActivity Field[time.Time] `json:"last_activity"`

	StatusText Field[string] `json:"status_text"`
	Metro2     Metro2Code    `json:"metro2"`

	// ReportedAt is the bureau reporting date; it drives staleness penalties.
	ReportedAt time.Time `json:"reported_at"`

	Violations []Violation `json:"violations,omitempty"`
}

// AgeDays returns whole days elapsed between the reporting date and now.
// Zero reporting dates yield 0 (no staleness penalty for undated records).
func (t *Tradeline) AgeDays(now time.Time) int {
	if t.ReportedAt.IsZero() {
		return 0
	}
	d := int(now.Sub(t.ReportedAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Collection is a third-party collection account.
type Collection struct {
	ID               string         `json:"id"`
	Agency           Field[string]  `json:"agency"`
	OriginalCreditor Field[string]  `json:"original_creditor"`
	Amount           Field[float64] `json:"amount"`
	ReportedAt       time.Time      `json:"reported_at"`
}

// Inquiry is a credit pull recorded on the report.
type Inquiry struct {
	ID       string    `json:"id"`
	Creditor string    `json:"creditor"`
	Bureau   string    `json:"bureau"`
	Date     time.Time `json:"date"`
	Hard     bool      `json:"hard"`
}

// PublicRecord is a court or lien record attached to the report.
type PublicRecord struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	FiledAt time.Time      `json:"filed_at"`
	Amount  Field[float64] `json:"amount"`
}

// DisputeRecord tracks a previously sent dispute for a tradeline.
type DisputeRecord struct {
	EntityID string    `json:"entity_id"`
	Method   string    `json:"method"`
	SentAt   time.Time `json:"sent_at"`
	Status   string    `json:"status"`
}
