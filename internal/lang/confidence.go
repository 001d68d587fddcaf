package lang

import (
	"encoding/json"
	"math"
)

// Confidence is a float clamped to [0, 1], used throughout the gateway to
// express how sure a routing decision, permission check, or proof is.
type Confidence struct {
	v float64
}

// NewConfidence clamps f into [0, 1].
func NewConfidence(f float64) Confidence {
	if math.IsNaN(f) {
		return Confidence{v: 0}
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return Confidence{v: f}
}

// Value returns the underlying float64 in [0, 1].
func (c Confidence) Value() float64 { return c.v }

// MarshalJSON renders the confidence as a plain JSON number.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.v)
}

// UnmarshalJSON parses a JSON number into a clamped Confidence.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = NewConfidence(f)
	return nil
}

// Combine computes the geometric mean of a set of confidences, the way
// independent pieces of evidence are combined into one score: a single
// low-confidence input pulls the result down more than an arithmetic mean
// would, matching "confidence degrades multiplicatively, not additively".
// An empty set returns the neutral default of 0.5.
func Combine(values ...Confidence) Confidence {
	if len(values) == 0 {
		return NewConfidence(0.5)
	}
	product := 1.0
	for _, c := range values {
		product *= c.v
	}
	return NewConfidence(math.Pow(product, 1.0/float64(len(values))))
}
