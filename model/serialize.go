package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ieee0824/speechtext/vocab"
)

// serializedVersion tags the gob payload written by Save.
const serializedVersion = 1

// VocabularyFile is the vocabulary file name expected next to the weights.
const VocabularyFile = "vocabulary.txt"

type serializedLayer struct {
	W      []float64
	B      []float64
	InDim  int
	OutDim int
}

type serializedBN struct {
	Gamma       []float64
	Beta        []float64
	RunningMean []float64
	RunningVar  []float64
	Dim         int
}

type serializedDNN struct {
	Version    int
	FeatureDim int
	ContextLen int
	Layers     []serializedLayer
	BN         []serializedBN // empty unless batch norm is enabled
}

// Save serializes the DNN to a writer using gob encoding.
func (d *DNN) Save(w io.Writer) error {
	sd := serializedDNN{
		Version:    serializedVersion,
		FeatureDim: d.FeatureDim,
		ContextLen: d.ContextLen,
		Layers:     make([]serializedLayer, len(d.Layers)),
	}
	for i, l := range d.Layers {
		sd.Layers[i] = serializedLayer{W: l.W, B: l.B, InDim: l.InDim, OutDim: l.OutDim}
	}
	if d.UseBatchNorm {
		sd.BN = make([]serializedBN, len(d.BN))
		for i, bn := range d.BN {
			sd.BN[i] = serializedBN{
				Gamma: bn.Gamma, Beta: bn.Beta,
				RunningMean: bn.RunningMean, RunningVar: bn.RunningVar,
				Dim: bn.Dim,
			}
		}
	}
	if err := gob.NewEncoder(w).Encode(sd); err != nil {
		return fmt.Errorf("encode dnn: %w", err)
	}
	return nil
}

// SaveFile writes the DNN to path.
func (d *DNN) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load deserializes and validates a DNN written by Save.
func Load(r io.Reader) (*DNN, error) {
	var sd serializedDNN
	if err := gob.NewDecoder(r).Decode(&sd); err != nil {
		return nil, fmt.Errorf("decode dnn: %w", err)
	}
	if sd.Version != serializedVersion {
		return nil, fmt.Errorf("unsupported dnn version %d", sd.Version)
	}

	d := &DNN{
		FeatureDim:   sd.FeatureDim,
		ContextLen:   sd.ContextLen,
		Layers:       make([]Layer, len(sd.Layers)),
		UseBatchNorm: len(sd.BN) > 0,
	}
	for i, sl := range sd.Layers {
		d.Layers[i] = Layer{W: sl.W, B: sl.B, InDim: sl.InDim, OutDim: sl.OutDim}
	}
	if d.UseBatchNorm {
		d.BN = make([]BatchNorm, len(sd.BN))
		for i, sbn := range sd.BN {
			d.BN[i] = BatchNorm{
				Gamma: sbn.Gamma, Beta: sbn.Beta,
				RunningMean: sbn.RunningMean, RunningVar: sbn.RunningVar,
				Dim: sbn.Dim,
			}
		}
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("invalid dnn: %w", err)
	}
	return d, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*DNN, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (d *DNN) validate() error {
	if len(d.Layers) == 0 {
		return errors.New("no layers")
	}
	if d.FeatureDim <= 0 || d.ContextLen < 0 {
		return fmt.Errorf("feature dim %d, context %d", d.FeatureDim, d.ContextLen)
	}
	prev := d.InputDim()
	for i, l := range d.Layers {
		if l.InDim != prev {
			return fmt.Errorf("layer %d: input dim %d, want %d", i, l.InDim, prev)
		}
		if l.OutDim <= 0 || len(l.W) != l.InDim*l.OutDim || len(l.B) != l.OutDim {
			return fmt.Errorf("layer %d: weights do not match %dx%d", i, l.OutDim, l.InDim)
		}
		prev = l.OutDim
	}
	if d.UseBatchNorm {
		if len(d.BN) != len(d.Layers)-1 {
			return fmt.Errorf("%d batch norm layers for %d hidden layers", len(d.BN), len(d.Layers)-1)
		}
		for i, bn := range d.BN {
			dim := d.Layers[i].OutDim
			if bn.Dim != dim || len(bn.Gamma) != dim || len(bn.Beta) != dim ||
				len(bn.RunningMean) != dim || len(bn.RunningVar) != dim {
				return fmt.Errorf("batch norm %d does not match dim %d", i, dim)
			}
		}
	}
	return nil
}

// LoadDir loads the first *.gob weights file in dir (by name) and the
// vocabulary next to it, and checks that they agree on the class count.
func LoadDir(dir string) (*DNN, *vocab.Vocabulary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.gob"))
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no *.gob model in %s", dir)
	}
	sort.Strings(matches)

	d, err := LoadFile(matches[0])
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", matches[0], err)
	}
	v, err := vocab.LoadFile(filepath.Join(dir, VocabularyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("load vocabulary: %w", err)
	}
	if d.NumClasses() != v.NumClasses() {
		return nil, nil, fmt.Errorf("model has %d classes, vocabulary needs %d", d.NumClasses(), v.NumClasses())
	}
	return d, v, nil
}
