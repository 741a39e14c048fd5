package model

// ConflictRaw is the sentinel written into a field's Raw when two high-trust
// sources disagree. The field's typed value is frozen and must not drive
// automated action until the underlying dispute is resolved.
const ConflictRaw = "CONFLICT"

// Field is a single extracted fact with provenance and trust weighting.
// Confidence is always within [0,100].
type Field[T any] struct {
	Value      T      `json:"value"`
	Raw        string `json:"raw,omitempty"`
	Confidence int    `json:"confidence"`
	Source     string `json:"source,omitempty"`
	Conflict   bool   `json:"conflict,omitempty"`
}

// NewField builds a field with its confidence clamped to [0,100].
func NewField[T any](value T, raw string, confidence int, source string) Field[T] {
	return Field[T]{
		Value:      value,
		Raw:        raw,
		Confidence: ClampConfidence(confidence),
		Source:     source,
	}
}

// IsZero reports whether the field was never populated by any source.
func (f Field[T]) IsZero() bool {
	return f.Source == "" && f.Raw == "" && f.Confidence == 0 && !f.Conflict
}

// ClampConfidence bounds a confidence score to [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
