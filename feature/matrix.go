package feature

import "github.com/ieee0824/speechtext/internal/mathutil"

// Matrix is a (frames x bins) feature matrix. Rows share one backing array.
type Matrix [][]float32

// NewMatrix allocates a zeroed frames x bins matrix.
func NewMatrix(frames, bins int) Matrix {
	return Matrix(mathutil.NewMat32(frames, bins))
}

// Frames returns the number of time frames.
func (m Matrix) Frames() int { return len(m) }

// Bins returns the number of frequency bins, or 0 for an empty matrix.
func (m Matrix) Bins() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
