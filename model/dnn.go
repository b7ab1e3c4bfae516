package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/ieee0824/speechtext/batch"
	"github.com/ieee0824/speechtext/internal/blas"
)

// Layer holds weights and biases for a single fully-connected layer.
// W is [OutDim × InDim] row-major, B is [OutDim].
type Layer struct {
	W      []float64
	B      []float64
	InDim  int
	OutDim int
}

// BatchNorm holds inference statistics for one batch normalization layer.
type BatchNorm struct {
	Gamma       []float64
	Beta        []float64
	RunningMean []float64
	RunningVar  []float64
	Dim         int
}

// DNN is a frame-wise feedforward CTC classifier.
// Architecture: context window → hidden1 (ReLU) → ... → hiddenN (ReLU) → output (softmax).
// Output step t of an item depends only on that item's frames, so batch
// padding never changes its predictions.
type DNN struct {
	Layers     []Layer // hidden layers + output layer
	FeatureDim int     // bins per input frame
	ContextLen int     // frames on each side (e.g. 5 → 11-frame window)

	UseBatchNorm bool
	BN           []BatchNorm // len = hidden layers (nil if !UseBatchNorm)
}

// NewDNN creates a DNN with random weights drawn from seed.
// numClasses includes the CTC blank.
func NewDNN(featureDim, hiddenDim, contextLen, numHiddenLayers, numClasses int, useBatchNorm bool, seed int64) *DNN {
	rng := rand.New(rand.NewSource(seed))
	inputDim := (2*contextLen + 1) * featureDim

	initWeights := xavierInit
	if useBatchNorm {
		initWeights = heInit
	}

	layers := make([]Layer, numHiddenLayers+1)
	prevDim := inputDim
	for i := 0; i < numHiddenLayers; i++ {
		layers[i] = Layer{
			W:      make([]float64, hiddenDim*prevDim),
			B:      make([]float64, hiddenDim),
			InDim:  prevDim,
			OutDim: hiddenDim,
		}
		initWeights(rng, layers[i].W, prevDim, hiddenDim)
		prevDim = hiddenDim
	}
	// Output layer
	layers[numHiddenLayers] = Layer{
		W:      make([]float64, numClasses*prevDim),
		B:      make([]float64, numClasses),
		InDim:  prevDim,
		OutDim: numClasses,
	}
	xavierInit(rng, layers[numHiddenLayers].W, prevDim, numClasses)

	d := &DNN{
		Layers:       layers,
		FeatureDim:   featureDim,
		ContextLen:   contextLen,
		UseBatchNorm: useBatchNorm,
	}
	if useBatchNorm {
		d.BN = make([]BatchNorm, numHiddenLayers)
		for i := range d.BN {
			dim := layers[i].OutDim
			bn := BatchNorm{
				Gamma:       make([]float64, dim),
				Beta:        make([]float64, dim),
				RunningMean: make([]float64, dim),
				RunningVar:  make([]float64, dim),
				Dim:         dim,
			}
			for j := 0; j < dim; j++ {
				bn.Gamma[j] = 1.0
				bn.RunningVar[j] = 1.0
			}
			d.BN[i] = bn
		}
	}
	return d
}

func xavierInit(rng *rand.Rand, w []float64, fanIn, fanOut int) {
	scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
}

// heInit initializes weights with He normal initialization (for ReLU networks with BN).
func heInit(rng *rand.Rand, w []float64, fanIn, _ int) {
	scale := math.Sqrt(2.0 / float64(fanIn))
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
}

// InputDim returns the width of one context-windowed input row.
func (d *DNN) InputDim() int { return (2*d.ContextLen + 1) * d.FeatureDim }

// NumClasses returns the output width, blank included.
func (d *DNN) NumClasses() int { return d.Layers[len(d.Layers)-1].OutDim }

// batchNormEps is the epsilon for numerical stability in batch normalization.
const batchNormEps = 1e-5

// Predict runs the whole batch through the network as one matrix per layer.
// Each item yields MaxFrames steps; steps past the item's true length repeat
// its last frame and carry no meaning.
func (d *DNN) Predict(ctx context.Context, b *batch.Tensor) ([][][]float64, error) {
	if b.Bins != d.FeatureDim {
		return nil, fmt.Errorf("predict: batch has %d bins, model expects %d", b.Bins, d.FeatureDim)
	}
	rows := b.Size * b.MaxFrames
	input := d.contextWindows(b)

	prevAct := input
	prevDim := d.InputDim()
	nLayers := len(d.Layers)
	for i := range d.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		layer := &d.Layers[i]
		dst := make([]float64, rows*layer.OutDim)

		blas.Dgemm(false, true, rows, layer.OutDim, prevDim,
			1.0, prevAct, prevDim, layer.W, prevDim, 0.0, dst, layer.OutDim)

		if i < nLayers-1 {
			if d.UseBatchNorm {
				addBiasBNReLU(dst, layer.B, &d.BN[i], rows, layer.OutDim)
			} else {
				addBiasReLU(dst, layer.B, rows, layer.OutDim)
			}
		} else {
			addBiasSoftmax(dst, layer.B, rows, layer.OutDim)
		}
		prevAct = dst
		prevDim = layer.OutDim
	}

	// Reshape to [item][step][class] views over the flat output
	classes := d.NumClasses()
	out := make([][][]float64, b.Size)
	for i := range out {
		steps := make([][]float64, b.MaxFrames)
		for t := range steps {
			off := (i*b.MaxFrames + t) * classes
			steps[t] = prevAct[off : off+classes : off+classes]
		}
		out[i] = steps
	}
	return out, nil
}

// contextWindows builds the flat [Size*MaxFrames × InputDim] input matrix.
// Window edges replicate the item's first and last valid frame.
func (d *DNN) contextWindows(b *batch.Tensor) []float64 {
	inDim := d.InputDim()
	input := make([]float64, b.Size*b.MaxFrames*inDim)
	winSize := 2*d.ContextLen + 1

	for i := 0; i < b.Size; i++ {
		last := b.Lengths[i] - 1
		for t := 0; t < b.MaxFrames; t++ {
			off := (i*b.MaxFrames + t) * inDim
			for w := 0; w < winSize; w++ {
				srcT := min(max(t-d.ContextLen+w, 0), last)
				dst := input[off+w*d.FeatureDim : off+(w+1)*d.FeatureDim]
				for k, v := range b.Frame(i, srcT) {
					dst[k] = float64(v)
				}
			}
		}
	}
	return input
}

// addBiasReLU adds bias and applies ReLU in place.
func addBiasReLU(z []float64, bias []float64, rows, cols int) {
	for i := 0; i < rows; i++ {
		off := i * cols
		for j := 0; j < cols; j++ {
			v := z[off+j] + bias[j]
			if v < 0 {
				v = 0
			}
			z[off+j] = v
		}
	}
}

// addBiasBNReLU adds bias, applies batch normalization using running stats, then ReLU.
// Fused: z = gamma * (z + bias - runningMean) / sqrt(runningVar + eps) + beta → ReLU
func addBiasBNReLU(z []float64, bias []float64, bn *BatchNorm, rows, cols int) {
	scale := make([]float64, cols)
	shift := make([]float64, cols)
	for j := 0; j < cols; j++ {
		invStd := 1.0 / math.Sqrt(bn.RunningVar[j]+batchNormEps)
		scale[j] = bn.Gamma[j] * invStd
		shift[j] = bn.Beta[j] - bn.Gamma[j]*invStd*(bn.RunningMean[j]-bias[j])
	}
	for i := 0; i < rows; i++ {
		off := i * cols
		for j := 0; j < cols; j++ {
			v := z[off+j]*scale[j] + shift[j]
			if v < 0 {
				v = 0
			}
			z[off+j] = v
		}
	}
}

// addBiasSoftmax adds bias and applies softmax per row.
func addBiasSoftmax(z []float64, bias []float64, rows, cols int) {
	for i := 0; i < rows; i++ {
		row := z[i*cols : (i+1)*cols]
		maxVal := math.Inf(-1)
		for j := range row {
			row[j] += bias[j]
			maxVal = max(maxVal, row[j])
		}
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - maxVal)
			sum += row[j]
		}
		inv := 1.0 / sum
		for j := range row {
			row[j] *= inv
		}
	}
}
