// Package batch stacks variable-length feature matrices into one padded tensor.
package batch

import (
	"errors"
	"fmt"

	"github.com/ieee0824/speechtext/feature"
)

// ErrShapeMismatch is returned when items disagree on the bin dimension.
var ErrShapeMismatch = errors.New("batch: frequency bin mismatch")

// Tensor is a dense (Size, MaxFrames, Bins) batch in row-major order.
// Items are padded with zeros on the time edge; Lengths holds each item's
// true frame count in input order.
type Tensor struct {
	Data      []float32
	Size      int
	MaxFrames int
	Bins      int
	Lengths   []int
}

// Assemble copies items into a new Tensor, preserving their order.
func Assemble(items []feature.Matrix) (*Tensor, error) {
	if len(items) == 0 {
		return nil, errors.New("assemble batch: no items")
	}

	bins := items[0].Bins()
	maxFrames := 0
	for i, m := range items {
		if m.Frames() == 0 {
			return nil, fmt.Errorf("assemble batch: item %d has no frames", i)
		}
		for t, row := range m {
			if len(row) != bins {
				return nil, fmt.Errorf("%w: item %d frame %d has %d bins, want %d",
					ErrShapeMismatch, i, t, len(row), bins)
			}
		}
		maxFrames = max(maxFrames, m.Frames())
	}

	b := &Tensor{
		Data:      make([]float32, len(items)*maxFrames*bins),
		Size:      len(items),
		MaxFrames: maxFrames,
		Bins:      bins,
		Lengths:   make([]int, len(items)),
	}
	for i, m := range items {
		b.Lengths[i] = m.Frames()
		base := i * maxFrames * bins
		for t, row := range m {
			copy(b.Data[base+t*bins:], row)
		}
	}
	return b, nil
}

// Frame returns the feature row of item i at time t. Rows past the item's
// true length are zero padding.
func (b *Tensor) Frame(i, t int) []float32 {
	off := (i*b.MaxFrames + t) * b.Bins
	return b.Data[off : off+b.Bins : off+b.Bins]
}

// Item returns the unpadded rows of item i as a view into Data.
func (b *Tensor) Item(i int) feature.Matrix {
	m := make(feature.Matrix, b.Lengths[i])
	for t := range m {
		m[t] = b.Frame(i, t)
	}
	return m
}
