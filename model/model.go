// Package model defines the acoustic model contract and a pure-Go
// frame-wise network that satisfies it.
package model

import (
	"context"

	"github.com/ieee0824/speechtext/batch"
)

// Model maps a padded feature batch to per-item symbol probabilities.
//
// Predict returns one (steps x NumClasses) matrix per batch item, in batch
// order. The number of steps is a property of the model and need not equal
// the tensor's MaxFrames. Implementations must not retain the tensor.
type Model interface {
	Predict(ctx context.Context, b *batch.Tensor) ([][][]float64, error)
	NumClasses() int
}

// PredictFunc is the signature of Model.Predict.
type PredictFunc func(ctx context.Context, b *batch.Tensor) ([][][]float64, error)

// Func adapts a plain function to the Model interface.
type Func struct {
	Classes int
	Fn      PredictFunc
}

// Predict calls f.Fn.
func (f Func) Predict(ctx context.Context, b *batch.Tensor) ([][][]float64, error) {
	return f.Fn(ctx, b)
}

// NumClasses returns f.Classes.
func (f Func) NumClasses() int { return f.Classes }
