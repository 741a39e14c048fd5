package resolve

import (
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// builtinAliases maps common bank-name variants to a canonical creditor name.
// Keys and values are upper-cased, punctuation-stripped forms.
var builtinAliases = map[string]string{
	"BOFA":                "BANK OF AMERICA",
	"BOA":                 "BANK OF AMERICA",
	"BAC":                 "BANK OF AMERICA",
	"BK OF AMER":          "BANK OF AMERICA",
	"CHASE":               "JPMORGAN CHASE",
	"JPMCB":               "JPMORGAN CHASE",
	"JPM CHASE":           "JPMORGAN CHASE",
	"CHASE BANK":          "JPMORGAN CHASE",
	"CITI":                "CITIBANK",
	"CITIBANK NA":         "CITIBANK",
	"CBNA":                "CITIBANK",
	"WF":                  "WELLS FARGO",
	"WELLS FARGO BANK":    "WELLS FARGO",
	"WFB":                 "WELLS FARGO",
	"CAP ONE":             "CAPITAL ONE",
	"CAP1":                "CAPITAL ONE",
	"CAPITAL ONE BANK":    "CAPITAL ONE",
	"CAPITAL ONE NA":      "CAPITAL ONE",
	"AMEX":                "AMERICAN EXPRESS",
	"AM EX":               "AMERICAN EXPRESS",
	"DISCOVER FIN SVCS":   "DISCOVER",
	"DISCOVER BANK":       "DISCOVER",
	"SYNCB":               "SYNCHRONY BANK",
	"SYNCHRONY":           "SYNCHRONY BANK",
	"USB":                 "US BANK",
	"US BANK NA":          "US BANK",
	"PORTFOLIO RECOV":     "PORTFOLIO RECOVERY ASSOCIATES",
	"PRA":                 "PORTFOLIO RECOVERY ASSOCIATES",
	"MIDLAND FUND":        "MIDLAND CREDIT MANAGEMENT",
	"MIDLAND CRED":        "MIDLAND CREDIT MANAGEMENT",
}

// similarityThreshold is the normalized levenshtein distance below which two
// canonical names are treated as the same creditor.
const similarityThreshold = 0.25

// AliasTable resolves creditor-name variants to canonical names.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable returns a table seeded with the builtin bank-name variants.
func NewAliasTable() *AliasTable {
	m := make(map[string]string, len(builtinAliases))
	for k, v := range builtinAliases {
		m[k] = v
	}
	return &AliasTable{aliases: m}
}

// LoadOverrides merges alias entries from a YAML file of the form
// `alias: canonical`. Later entries override builtins.
func (a *AliasTable) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "resolve: read alias file %s", path)
	}
	var extra map[string]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return eris.Wrap(err, "resolve: parse alias file")
	}
	for k, v := range extra {
		a.aliases[normalizeName(k)] = normalizeName(v)
	}
	return nil
}

// Canonical maps a raw creditor name to its canonical form. Unknown names
// come back normalized but otherwise untouched.
func (a *AliasTable) Canonical(raw string) string {
	n := normalizeName(raw)
	if canon, ok := a.aliases[n]; ok {
		return canon
	}
	return n
}

// SameCreditor reports whether two raw creditor names refer to the same
// institution, via alias lookup first and normalized edit distance second.
func (a *AliasTable) SameCreditor(x, y string) bool {
	cx, cy := a.Canonical(x), a.Canonical(y)
	if cx == "" || cy == "" {
		return false
	}
	if cx == cy {
		return true
	}
	dist := levenshtein.ComputeDistance(cx, cy)
	maxLen := len(cx)
	if len(cy) > maxLen {
		maxLen = len(cy)
	}
	return float64(dist)/float64(maxLen) < similarityThreshold
}

// normalizeName upper-cases and strips punctuation and corporate suffixes.
func normalizeName(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")
	for _, suffix := range []string{" NA", " N A", " LLC", " INC", " CORP", " CO"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return s
}
