// Package classifier turns a black-box image model into ranked dish
// predictions.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"nutritrack/apperr"
	"nutritrack/observability"
)

// MaxPredictions is how many ranked predictions Classify returns.
const MaxPredictions = 3

// ErrClassifierUnavailable means the model could not run at all. An empty
// prediction list is a normal answer; this is not.
var ErrClassifierUnavailable = apperr.New(apperr.CodeClassifierUnavailable, "classifier", "image classifier unavailable")

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Frame is one encoded camera image.
type Frame struct {
	Data        []byte
	ContentType string
}

// Model is a backend that scores a frame. Implementations may return any
// number of predictions in any order.
type Model interface {
	Predict(ctx context.Context, frame Frame) ([]Prediction, error)
}

type Adapter struct {
	model Model
}

func NewAdapter(model Model) *Adapter {
	return &Adapter{model: model}
}

// Classify returns at most MaxPredictions predictions, confidence descending
// and clamped to [0,1]. Any model failure surfaces as ErrClassifierUnavailable.
func (a *Adapter) Classify(ctx context.Context, frame Frame) ([]Prediction, error) {
	ctx, span := observability.Tracer("classifier").Start(ctx, "classifier.Classify")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if a == nil || a.model == nil {
		err = ErrClassifierUnavailable
		return nil, err
	}
	raw, perr := a.model.Predict(ctx, frame)
	if perr != nil {
		if errors.Is(perr, context.Canceled) || errors.Is(perr, context.DeadlineExceeded) {
			err = perr
			return nil, err
		}
		err = fmt.Errorf("%w: %v", ErrClassifierUnavailable, perr)
		return nil, err
	}

	out := make([]Prediction, 0, len(raw))
	for _, p := range raw {
		if p.Label == "" || math.IsNaN(p.Confidence) {
			continue
		}
		out = append(out, Prediction{Label: p.Label, Confidence: clamp01(p.Confidence)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > MaxPredictions {
		out = out[:MaxPredictions]
	}
	if len(out) > 0 {
		span.SetAttributes(
			attribute.String("classifier.top_label", out[0].Label),
			attribute.Float64("classifier.top_confidence", out[0].Confidence),
		)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
