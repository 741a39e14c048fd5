package model

// RawTradeline is an untrusted tradeline guess produced by the extraction
// provider from unstructured report text. Every value is a string exactly as
// read; nothing here is consumed directly — the normalization pipeline turns
// it into a typed, confidence-scored Tradeline.
type RawTradeline struct {
	Creditor      string `json:"creditor"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	Balance       string `json:"balance"`
	CreditLimit   string `json:"credit_limit"`
	PastDue       string `json:"past_due"`
	DateOpened    string `json:"date_opened"`
	DateClosed    string `json:"date_closed"`
	LastActivity  string `json:"last_activity"`
	Status        string `json:"status"`
	ReportedAt    string `json:"reported_at"`

	// Confidence is the extractor's own 0-100 trust estimate for this record.
	Confidence int `json:"confidence"`
	// Source identifies the text chunk or document the record came from.
	Source string `json:"source"`
}

// RawIdentity is the untrusted identity block from an extracted report.
type RawIdentity struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	SSNLast4  string `json:"ssn_last4"`
	BirthYear string `json:"birth_year"`

	Confidence int    `json:"confidence"`
	Source     string `json:"source"`
}

// RawReport is the extraction provider's full output for one report document.
type RawReport struct {
	Identity   RawIdentity    `json:"identity"`
	Scores     map[string]int `json:"scores,omitempty"` // bureau -> score
	Tradelines []RawTradeline `json:"tradelines"`
}
