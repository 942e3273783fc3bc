package classifier

import (
	"context"
	"sync"
)

// StaticModel answers every frame with the same predictions until changed.
// It backs CLASSIFIER_BACKEND=static and the tests.
type StaticModel struct {
	mu    sync.RWMutex
	preds []Prediction
	err   error
}

func NewStaticModel(preds ...Prediction) *StaticModel {
	m := &StaticModel{}
	m.Set(preds...)
	return m
}

// Set replaces the predictions returned from now on and clears any failure.
func (m *StaticModel) Set(preds ...Prediction) {
	m.mu.Lock()
	m.preds = append([]Prediction(nil), preds...)
	m.err = nil
	m.mu.Unlock()
}

// Fail makes every following Predict call return err.
func (m *StaticModel) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *StaticModel) Predict(ctx context.Context, _ Frame) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]Prediction(nil), m.preds...), nil
}
