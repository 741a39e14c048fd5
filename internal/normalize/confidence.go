package normalize

import (
	"time"

	"github.com/fairline-labs/fairline/internal/model"
)

// conflictThreshold is the confidence both readings must reach before a
// disagreement freezes the field instead of picking a winner.
const conflictThreshold = 80

// DecayConfidence subtracts 5 points per elapsed 30-day period since the
// reporting date, floored at 0. Zero reporting dates decay nothing.
func DecayConfidence(confidence int, reportedAt, now time.Time) int {
	confidence = model.ClampConfidence(confidence)
	if reportedAt.IsZero() || !now.After(reportedAt) {
		return confidence
	}
	periods := int(now.Sub(reportedAt).Hours() / 24 / 30)
	return model.ClampConfidence(confidence - periods*5)
}

// Resolve merges two readings of the same field. If both clear the conflict
// threshold and disagree, the result is frozen to the CONFLICT sentinel with
// confidence set to the max of the two — a deliberate halt-on-ambiguity rule.
// Otherwise the higher-confidence reading wins.
func Resolve[T comparable](a, b model.Field[T], equal func(x, y T) bool) model.Field[T] {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if equal == nil {
		equal = func(x, y T) bool { return x == y }
	}

	if !equal(a.Value, b.Value) && a.Confidence >= conflictThreshold && b.Confidence >= conflictThreshold {
		frozen := a
		frozen.Raw = model.ConflictRaw
		frozen.Conflict = true
		if b.Confidence > frozen.Confidence {
			frozen.Confidence = b.Confidence
		}
		frozen.Source = concatSources(a.Source, b.Source)
		return frozen
	}

	if b.Confidence > a.Confidence {
		return b
	}
	return a
}

// concatSources joins provenance strings without duplicating identical ones.
func concatSources(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	default:
		return a + "+" + b
	}
}
