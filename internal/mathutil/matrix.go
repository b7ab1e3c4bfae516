package mathutil

// Mat32 is a 2D float32 matrix stored as row-major [][]float32.
type Mat32 = [][]float32

// NewMat32 creates a rows x cols float32 matrix initialized to zero.
// All rows share one contiguous backing slice.
func NewMat32(rows, cols int) Mat32 {
	m := make(Mat32, rows)
	data := make([]float32, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// Column copies column j of m into dst (reallocated if too small) and returns it.
func Column(dst []float64, m Mat32, j int) []float64 {
	if cap(dst) < len(m) {
		dst = make([]float64, len(m))
	}
	dst = dst[:len(m)]
	for i, row := range m {
		dst[i] = float64(row[j])
	}
	return dst
}

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}
