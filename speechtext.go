// Package speechtext transcribes batches of audio files to text with a
// CTC acoustic model and greedy decoding.
package speechtext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/speechtext/audio"
	"github.com/ieee0824/speechtext/batch"
	"github.com/ieee0824/speechtext/decoder"
	"github.com/ieee0824/speechtext/feature"
	"github.com/ieee0824/speechtext/internal/mathutil"
	"github.com/ieee0824/speechtext/model"
	"github.com/ieee0824/speechtext/vocab"
)

// Service is the top-level transcriber. The model and vocabulary are
// read-only after construction; Service is safe for concurrent use.
type Service struct {
	model       model.Model
	vocab       *vocab.Vocabulary
	decoder     *decoder.Decoder
	loader      *audio.Loader
	extractor   *feature.Extractor
	logger      *slog.Logger
	parallelism int

	featCfg  feature.Config
	audioCfg audio.Config
}

// Option configures a Service.
type Option func(*Service)

// WithFeatureConfig sets custom spectrogram parameters.
func WithFeatureConfig(cfg feature.Config) Option {
	return func(s *Service) {
		s.featCfg = cfg
	}
}

// WithAudioConfig sets custom audio loader parameters.
func WithAudioConfig(cfg audio.Config) Option {
	return func(s *Service) {
		s.audioCfg = cfg
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallelism bounds how many inputs are decoded and featurized at
// once. n <= 0 means GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(s *Service) {
		s.parallelism = n
	}
}

// New loads the model and vocabulary from modelDir and creates a Service.
func New(modelDir string, opts ...Option) (*Service, error) {
	m, v, err := model.LoadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load model dir: %w", err)
	}
	return NewFromModel(m, v, opts...)
}

// NewFromModel creates a Service from a pre-loaded model and vocabulary.
func NewFromModel(m model.Model, v *vocab.Vocabulary, opts ...Option) (*Service, error) {
	if m == nil || v == nil {
		return nil, errors.New("model and vocabulary are required")
	}
	if m.NumClasses() != v.NumClasses() {
		return nil, fmt.Errorf("model has %d classes, vocabulary needs %d", m.NumClasses(), v.NumClasses())
	}

	s := &Service{
		model:    m,
		vocab:    v,
		decoder:  decoder.New(v),
		logger:   slog.New(slog.DiscardHandler),
		featCfg:  feature.DefaultConfig(),
		audioCfg: audio.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parallelism <= 0 {
		s.parallelism = runtime.GOMAXPROCS(0)
	}

	var err error
	s.extractor, err = feature.NewExtractor(s.featCfg)
	if err != nil {
		return nil, err
	}
	s.loader = audio.NewLoader(s.audioCfg)
	s.logger = s.logger.With("component", "service")
	return s, nil
}

// Ready reports whether a model and vocabulary are loaded.
func (s *Service) Ready() bool {
	return s != nil && s.model != nil && s.vocab != nil
}

// Vocabulary returns the loaded vocabulary.
func (s *Service) Vocabulary() *vocab.Vocabulary { return s.vocab }

// Transcribe decodes each input container, runs one batched model call and
// returns one string per input in input order. normalize resamples every
// input to the configured target rate. Any failing item fails the call.
func (s *Service) Transcribe(ctx context.Context, inputs [][]byte, normalize bool) ([]string, error) {
	results, err := s.TranscribeDetailed(ctx, inputs, normalize)
	if err != nil {
		return nil, err
	}
	return texts(results), nil
}

// TranscribeFiles is Transcribe over file paths.
func (s *Service) TranscribeFiles(ctx context.Context, paths []string, normalize bool) ([]string, error) {
	results, err := s.TranscribeFilesDetailed(ctx, paths, normalize)
	if err != nil {
		return nil, err
	}
	return texts(results), nil
}

// TranscribeFilesDetailed is TranscribeDetailed over file paths.
func (s *Service) TranscribeFilesDetailed(ctx context.Context, paths []string, normalize bool) ([]*decoder.Result, error) {
	inputs := make([][]byte, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, newError(ErrInputDecode, i, err)
		}
		inputs[i] = data
	}
	return s.TranscribeDetailed(ctx, inputs, normalize)
}

// TranscribeDetailed is Transcribe returning per-symbol details.
func (s *Service) TranscribeDetailed(ctx context.Context, inputs [][]byte, normalize bool) ([]*decoder.Result, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	feats, err := s.extractAll(ctx, len(inputs), func(ctx context.Context, i int) ([]float32, error) {
		w, err := s.loader.Decode(ctx, inputs[i], normalize)
		if err != nil {
			return nil, newError(ErrInputDecode, i, err)
		}
		return w.Samples, nil
	})
	if err != nil {
		return nil, err
	}
	return s.run(ctx, feats)
}

// TranscribeWaveforms transcribes already decoded waveforms. They are used
// as given; callers resample them to the rate the model was trained on.
// A waveform without a positive sample rate fails with ErrInputDecode; one
// at another rate than the loader's target is logged and still transcribed.
func (s *Service) TranscribeWaveforms(ctx context.Context, waves []audio.Waveform) ([]string, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	target := s.loader.Config().TargetSampleRate
	feats, err := s.extractAll(ctx, len(waves), func(_ context.Context, i int) ([]float32, error) {
		rate := waves[i].SampleRate
		if rate <= 0 {
			return nil, newError(ErrInputDecode, i, fmt.Errorf("invalid sample rate %d", rate))
		}
		if rate != target {
			s.logger.Warn("waveform sample rate differs from target",
				"item", i, "rate", rate, "target", target)
		}
		return waves[i].Samples, nil
	})
	if err != nil {
		return nil, err
	}
	results, err := s.run(ctx, feats)
	if err != nil {
		return nil, err
	}
	return texts(results), nil
}

// extractAll loads and featurizes n items concurrently, placing each
// matrix at its input index.
func (s *Service) extractAll(ctx context.Context, n int, load func(context.Context, int) ([]float32, error)) ([]feature.Matrix, error) {
	feats := make([]feature.Matrix, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			samples, err := load(gctx, i)
			if err != nil {
				return err
			}
			feats[i] = s.extractor.Extract(samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feats, nil
}

// run batches feats, invokes the model once and decodes every item.
func (s *Service) run(ctx context.Context, feats []feature.Matrix) ([]*decoder.Result, error) {
	if len(feats) == 0 {
		return []*decoder.Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tensor, err := batch.Assemble(feats)
	if err != nil {
		return nil, newError(ErrShapeInvariant, -1, err)
	}

	start := time.Now()
	probs, err := s.model.Predict(ctx, tensor)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newError(ErrModelInvocation, -1, err)
	}
	if err := s.checkOutput(tensor, probs); err != nil {
		return nil, err
	}
	s.logger.Debug("model invoked",
		"items", tensor.Size,
		"max_frames", tensor.MaxFrames,
		"elapsed", time.Since(start))

	results := make([]*decoder.Result, len(probs))
	for i, p := range probs {
		res, err := s.decoder.Decode(p, decodeSteps(tensor.Lengths[i], len(p), tensor.MaxFrames))
		if err != nil {
			return nil, newError(ErrShapeInvariant, i, err)
		}
		results[i] = res
	}
	return results, nil
}

// checkOutput rejects model output that does not line up with the batch.
func (s *Service) checkOutput(tensor *batch.Tensor, probs [][][]float64) error {
	if len(probs) != tensor.Size {
		return newError(ErrModelInvocation, -1,
			fmt.Errorf("model returned %d items for a batch of %d", len(probs), tensor.Size))
	}
	classes := s.vocab.NumClasses()
	for i, steps := range probs {
		if len(steps) == 0 {
			return newError(ErrModelInvocation, i, errors.New("model returned no steps"))
		}
		for t, row := range steps {
			if len(row) != classes {
				return newError(ErrModelInvocation, i,
					fmt.Errorf("step %d has %d classes, want %d", t, len(row), classes))
			}
		}
	}
	return nil
}

// decodeSteps scales an item's true frame count to the model's output
// resolution: ceil(frames * outSteps / maxFrames), at most outSteps.
func decodeSteps(frames, outSteps, maxFrames int) int {
	if maxFrames <= 0 {
		return 0
	}
	return min(mathutil.CeilDiv(frames*outSteps, maxFrames), outSteps)
}

func texts(results []*decoder.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text
	}
	return out
}
