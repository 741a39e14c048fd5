package normalize

import (
	"strings"

	"github.com/fairline-labs/fairline/internal/model"
)

// statusHeuristic maps a free-text substring to a Metro-2 status code.
// Evaluated in order; first match wins, so more specific phrases come first.
type statusHeuristic struct {
	substr string
	code   model.Metro2Code
}

var statusHeuristics = []statusHeuristic{
	{"charge off", model.Metro2ChargeOff},
	{"charge-off", model.Metro2ChargeOff},
	{"charged off", model.Metro2ChargeOff},
	{"chargeoff", model.Metro2ChargeOff},
	{"collection", model.Metro2Collection},
	{"repossession", model.Metro2Collection},
	{"120", model.Metro2Late120},
	{"150", model.Metro2Late120},
	{"180", model.Metro2Late120},
	{"90", model.Metro2Late90},
	{"60", model.Metro2Late60},
	{"30", model.Metro2Late30},
	{"late", model.Metro2Late30},
	{"delinquent", model.Metro2Late30},
	{"paid, closed", model.Metro2PaidClosed},
	{"paid/closed", model.Metro2PaidClosed},
	{"paid in full", model.Metro2PaidClosed},
	{"closed", model.Metro2PaidClosed},
	{"pays as agreed", model.Metro2Current},
	{"paid as agreed", model.Metro2Current},
	{"current", model.Metro2Current},
	{"open", model.Metro2Current},
	{"ok", model.Metro2Current},
}

// MapStatus converts a free-text account status description into a Metro-2
// status code, defaulting to the unknown code when nothing matches.
func MapStatus(raw string) model.Metro2Code {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.Metro2Unknown
	}
	for _, h := range statusHeuristics {
		if strings.Contains(s, h.substr) {
			return h.code
		}
	}
	return model.Metro2Unknown
}

// StatusReadsCurrent reports whether the free text claims the account is in
// good standing. Used by the charge-off/status inconsistency rule.
func StatusReadsCurrent(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return false
	}
	for _, marker := range []string{"current", "pays as agreed", "paid as agreed"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	// "ok" only as a standalone token, to avoid matching inside other words.
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '/' || r == '-'
	}) {
		if tok == "ok" {
			return true
		}
	}
	return false
}
