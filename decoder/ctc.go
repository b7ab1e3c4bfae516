// Package decoder implements greedy CTC decoding of symbol probabilities.
package decoder

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/speechtext/vocab"
)

// ErrSymbolRange is returned when the best path contains an index the
// vocabulary cannot map.
var ErrSymbolRange = errors.New("decoder: symbol index out of range")

// BestPath returns the argmax index of each of the first steps rows.
// Ties go to the lowest index. steps is clamped to [0, len(probs)].
func BestPath(probs [][]float64, steps int) []int {
	steps = min(max(steps, 0), len(probs))
	path := make([]int, steps)
	for t := range path {
		path[t] = floats.MaxIdx(probs[t])
	}
	return path
}

// run is a maximal stretch of equal indices in a path, steps [start, end].
type run struct {
	idx, start, end int
}

// symbolRuns splits path into runs of equal indices and drops the blank
// runs. What remains is the collapsed path, one run per emitted symbol.
func symbolRuns(path []int, blank int) []run {
	var runs []run
	for t, idx := range path {
		if t > 0 && idx == path[t-1] {
			if idx != blank {
				runs[len(runs)-1].end = t
			}
			continue
		}
		if idx != blank {
			runs = append(runs, run{idx: idx, start: t, end: t})
		}
	}
	return runs
}

// Collapse applies CTC collapsing: adjacent repeats merge into one, then
// every blank is removed. "a a _ a" yields "a a", "a a" yields "a".
func Collapse(path []int, blank int) []int {
	runs := symbolRuns(path, blank)
	out := make([]int, len(runs))
	for i, r := range runs {
		out[i] = r.idx
	}
	return out
}

// Decoder maps model output to text through a vocabulary. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	vocab *vocab.Vocabulary
}

// New creates a Decoder over v. The blank is v.Blank().
func New(v *vocab.Vocabulary) *Decoder {
	return &Decoder{vocab: v}
}

// Vocabulary returns the decoder's vocabulary.
func (d *Decoder) Vocabulary() *vocab.Vocabulary { return d.vocab }

// Decode greedily decodes the first steps rows of probs.
func (d *Decoder) Decode(probs [][]float64, steps int) (*Result, error) {
	steps = min(max(steps, 0), len(probs))
	for t := 0; t < steps; t++ {
		if len(probs[t]) == 0 {
			return nil, fmt.Errorf("decode step %d: empty probability row", t)
		}
	}

	path := BestPath(probs, steps)

	res := &Result{}
	for t, idx := range path {
		res.LogScore += math.Log(probs[t][idx])
	}

	var sb strings.Builder
	for _, r := range symbolRuns(path, d.vocab.Blank()) {
		text, err := d.vocab.Symbol(r.idx)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrSymbolRange, r.start, err)
		}
		sb.WriteString(text)

		sym := Symbol{Text: text, Index: r.idx, StartStep: r.start, EndStep: r.end}
		for t := r.start; t <= r.end; t++ {
			sym.Prob = max(sym.Prob, probs[t][r.idx])
		}
		res.Symbols = append(res.Symbols, sym)
	}
	res.Text = sb.String()
	return res, nil
}
