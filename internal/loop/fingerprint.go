package loop

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/fairline-labs/fairline/internal/model"
)

// Fingerprint derives a stable digest of a strategy set's substance. Two sets
// that recommend the same actions against the same entities for the same
// rules hash identically regardless of generation order. Violation instances
// are re-minted on every scan, so the digest keys on the rules behind them,
// not their ids.
func Fingerprint(strategies []model.EnforcementStrategy, violationsByID map[string]model.Violation) string {
	tuples := make([]string, 0, len(strategies))
	for _, s := range strategies {
		seen := make(map[model.RuleID]bool, len(s.ViolationIDs))
		rules := make([]string, 0, len(s.ViolationIDs))
		for _, vid := range s.ViolationIDs {
			v, ok := violationsByID[vid]
			if !ok || seen[v.RuleID] {
				continue
			}
			seen[v.RuleID] = true
			rules = append(rules, string(v.RuleID))
		}
		sort.Strings(rules)
		tuples = append(tuples, string(s.Type)+"|"+s.TargetEntityID+"|"+strings.Join(rules, ","))
	}
	sort.Strings(tuples)

	h := fnv.New64a()
	for _, t := range tuples {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
