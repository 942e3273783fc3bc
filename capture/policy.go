package capture

import "nutritrack/classifier"

// DefaultThreshold is the minimum top-prediction confidence, inclusive.
const DefaultThreshold = 0.70

// Snapshot is the latest value of each input signal.
type Snapshot struct {
	WeightGrams int                     `json:"weight_grams"`
	Stable      bool                    `json:"stable"`
	Predictions []classifier.Prediction `json:"predictions,omitempty"`
}

type Verdict int

const (
	VerdictWait Verdict = iota
	VerdictUnrecognized
	VerdictCandidate
)

type Decision struct {
	Verdict    Verdict
	Label      string
	DishName   string
	Confidence float64
}

// Decide applies the recognition rule to a snapshot. Only the top prediction
// counts, and nothing happens until the weight is stable and non-zero.
func Decide(s Snapshot, threshold float64) Decision {
	if !s.Stable || s.WeightGrams <= 0 || len(s.Predictions) == 0 {
		return Decision{Verdict: VerdictWait}
	}
	top := s.Predictions[0]
	if top.Confidence < threshold {
		return Decision{Verdict: VerdictWait}
	}
	name, ok := classifier.ToDishName(top.Label)
	if !ok {
		return Decision{Verdict: VerdictUnrecognized, Label: top.Label, Confidence: top.Confidence}
	}
	return Decision{Verdict: VerdictCandidate, Label: top.Label, DishName: name, Confidence: top.Confidence}
}
