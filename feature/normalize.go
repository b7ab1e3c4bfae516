package feature

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ieee0824/speechtext/internal/mathutil"
)

// Normalize standardizes each frequency bin over the time axis in-place:
// x = (x - mean) / (std + eps), using the population standard deviation.
// Silent input stays at zero.
func Normalize(m Matrix, eps float64) {
	if len(m) == 0 {
		return
	}
	var col []float64
	for j := range m.Bins() {
		col = mathutil.Column(col, mathutil.Mat32(m), j)
		mean, std := stat.PopMeanStdDev(col, nil)
		inv := 1.0 / (std + eps)
		for t, row := range m {
			row[j] = float32((col[t] - mean) * inv)
		}
	}
}
