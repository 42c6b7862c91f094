// Package embedding learns node vectors from a walk corpus with skip-gram and
// negative sampling (SGNS).
//
// Learning rate decays linearly from Alpha to MinAlpha over the total number
// of tokens processed across all epochs. Workers update the shared weight
// tables without locking; only single-worker runs are bit-reproducible.
package embedding

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/rng"
	"github.com/ZanzyTHEbar/friendlink-go/internal/vectorstore"
	"github.com/hupe1980/vecgo/distance"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config contains SGNS hyperparameters.
type Config struct {
	// Dimensions is the vector length. Default: 64.
	Dimensions int `json:"dimensions" koanf:"dimensions" validate:"gte=0"`

	// Window is the maximum context distance on either side. Each centre token
	// uses a reduced window drawn uniformly from [1, Window]. Default: 10.
	Window int `json:"window" koanf:"window" validate:"gte=0"`

	// MinCount drops ids seen fewer times from the vocabulary. Default: 1.
	MinCount int `json:"min_count" koanf:"min_count" validate:"gte=0"`

	// Epochs is the number of passes over the corpus. Default: 5.
	Epochs int `json:"epochs" koanf:"epochs" validate:"gte=0"`

	// Negative is the number of noise samples per positive pair. Default: 5.
	Negative int `json:"negative" koanf:"negative" validate:"gte=0"`

	// Alpha is the starting learning rate. Default: 0.025.
	Alpha float64 `json:"alpha" koanf:"alpha" validate:"gte=0"`

	// MinAlpha is the floor the learning rate decays to. Default: 0.0001.
	MinAlpha float64 `json:"min_alpha" koanf:"min_alpha" validate:"gte=0"`

	// Sample is the downsampling threshold for frequent ids; a negative value
	// disables downsampling. Default: 1e-3.
	Sample float64 `json:"sample" koanf:"sample"`

	// Workers is the number of training goroutines. Default: 4.
	Workers int `json:"workers" koanf:"workers" validate:"gte=0"`

	// Seed for reproducible training.
	Seed int64 `json:"seed" koanf:"seed"`
}

// DefaultConfig returns the defaults used by the training job.
func DefaultConfig() Config {
	return Config{
		Dimensions: 64,
		Window:     10,
		MinCount:   1,
		Epochs:     5,
		Negative:   5,
		Alpha:      0.025,
		MinAlpha:   0.0001,
		Sample:     1e-3,
		Workers:    4,
		Seed:       42,
	}
}

// withDefaults fills zero values; negative values are left for Validate.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Dimensions == 0 {
		c.Dimensions = d.Dimensions
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.MinCount == 0 {
		c.MinCount = d.MinCount
	}
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	if c.Negative == 0 {
		c.Negative = d.Negative
	}
	if c.Alpha == 0 {
		c.Alpha = d.Alpha
	}
	if c.MinAlpha == 0 {
		c.MinAlpha = d.MinAlpha
	}
	if c.Sample == 0 {
		c.Sample = d.Sample
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Validate reports unusable hyperparameters as ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case c.Dimensions < 1:
		return apptype.Configurationf("dimensions must be >= 1, got %d", c.Dimensions)
	case c.Window < 1:
		return apptype.Configurationf("window must be >= 1, got %d", c.Window)
	case c.MinCount < 1:
		return apptype.Configurationf("min_count must be >= 1, got %d", c.MinCount)
	case c.Epochs < 1:
		return apptype.Configurationf("epochs must be >= 1, got %d", c.Epochs)
	case c.Negative < 1:
		return apptype.Configurationf("negative must be >= 1, got %d", c.Negative)
	case !(c.Alpha > 0) || math.IsInf(c.Alpha, 0):
		return apptype.Configurationf("alpha must be a positive finite number, got %v", c.Alpha)
	case c.MinAlpha < 0 || c.MinAlpha > c.Alpha:
		return apptype.Configurationf("min_alpha must be in [0, alpha], got %v", c.MinAlpha)
	}
	return nil
}

// Trainer runs SGNS training.
type Trainer struct {
	config Config
	logger *zap.Logger
}

// NewTrainer fills zero-valued hyperparameters with defaults and validates them.
func NewTrainer(cfg Config, logger *zap.Logger) (*Trainer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{config: cfg, logger: logger.Named("embedding")}, nil
}

// Config returns the effective hyperparameters.
func (t *Trainer) Config() Config { return t.config }

// Train learns one vector per vocabulary id. kinds supplies the node kind
// stored with each vector; ids it does not know are stored as KindUnknown.
func (t *Trainer) Train(ctx context.Context, corpus apptype.Corpus, kinds apptype.KindResolver) (*vectorstore.Store, error) {
	if corpus.Tokens() == 0 {
		return nil, apptype.Configurationf("training corpus is empty")
	}
	vocab := buildVocabulary(corpus, t.config.MinCount)
	if vocab.size() == 0 {
		return nil, apptype.Configurationf("no node occurs at least %d times in the corpus", t.config.MinCount)
	}
	sentences, tokens := vocab.encode(corpus)

	m := newModel(t.config, vocab, tokens)
	t.logger.Info("Training embeddings",
		zap.Int("vocabulary", vocab.size()),
		zap.Int("sentences", len(sentences)),
		zap.Int64("tokens", tokens),
		zap.Int("dimensions", t.config.Dimensions),
		zap.Int("epochs", t.config.Epochs),
		zap.Int("workers", t.config.Workers),
	)

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.runEpoch(ctx, epoch, sentences); err != nil {
			return nil, fmt.Errorf("failed to train epoch %d: %w", epoch, err)
		}
		t.logger.Debug("Epoch complete", zap.Int("epoch", epoch+1), zap.Float64("alpha", m.alpha()))
	}

	entries := make([]vectorstore.Entry, vocab.size())
	dims := t.config.Dimensions
	for i, id := range vocab.ids {
		kind := apptype.KindUnknown
		if kinds != nil {
			if k, ok := kinds.KindOf(id); ok {
				kind = k
			}
		}
		entries[i] = vectorstore.Entry{ID: id, Kind: kind, Vector: m.syn0[i*dims : (i+1)*dims]}
	}
	return vectorstore.New(dims, entries)
}

const (
	maxExp        = 6
	expTableSize  = 1000
	checkInterval = 256
)

var expTable = func() [expTableSize]float32 {
	var tbl [expTableSize]float32
	for i := range tbl {
		e := math.Exp((float64(i)/expTableSize*2 - 1) * maxExp)
		tbl[i] = float32(e / (e + 1))
	}
	return tbl
}()

// sigmoid expects f in (-maxExp, maxExp).
func sigmoid(f float32) float32 {
	i := int((f + maxExp) * (expTableSize / (2.0 * maxExp)))
	return expTable[min(max(i, 0), expTableSize-1)]
}

// model holds the shared weight tables. syn0 rows are the learned vectors;
// syn1neg rows are the output weights used only during training.
type model struct {
	cfg     Config
	dims    int
	syn0    []float32
	syn1neg []float32
	noise   *noiseTable
	keep    []float64

	totalWork int64
	processed atomic.Int64
}

func newModel(cfg Config, vocab *vocabulary, tokens int64) *model {
	n, dims := vocab.size(), cfg.Dimensions
	m := &model{
		cfg:       cfg,
		dims:      dims,
		syn0:      make([]float32, n*dims),
		syn1neg:   make([]float32, n*dims),
		noise:     newNoiseTable(vocab),
		keep:      vocab.keepProbabilities(cfg.Sample),
		totalWork: int64(cfg.Epochs) * tokens,
	}
	r := rng.Derive(cfg.Seed, 0, 0)
	for i := range m.syn0 {
		m.syn0[i] = (r.Float32() - 0.5) / float32(dims)
	}
	return m
}

func (m *model) alpha() float64 {
	progress := float64(m.processed.Load()) / float64(m.totalWork+1)
	return max(m.cfg.MinAlpha, m.cfg.Alpha-(m.cfg.Alpha-m.cfg.MinAlpha)*progress)
}

func (m *model) runEpoch(ctx context.Context, epoch int, sentences [][]int32) error {
	workers := min(m.cfg.Workers, len(sentences))
	chunk := (len(sentences) + workers - 1) / workers
	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(sentences))
		if lo >= hi {
			break
		}
		r := rng.Derive(m.cfg.Seed, uint64(epoch)+1, uint64(w))
		eg.Go(func() error {
			neu1e := make([]float32, m.dims)
			kept := make([]int32, 0, 64)
			for i, sent := range sentences[lo:hi] {
				if i%checkInterval == 0 {
					if err := egCtx.Err(); err != nil {
						return err
					}
				}
				alpha := float32(m.alpha())
				kept = m.subsample(r, sent, kept[:0])
				m.trainSentence(r, kept, alpha, neu1e)
				m.processed.Add(int64(len(sent)))
			}
			return nil
		})
	}
	return eg.Wait()
}

func (m *model) subsample(r *rand.Rand, sent, dst []int32) []int32 {
	for _, w := range sent {
		if p := m.keep[w]; p >= 1 || p >= r.Float64() {
			dst = append(dst, w)
		}
	}
	return dst
}

func (m *model) trainSentence(r *rand.Rand, sent []int32, alpha float32, neu1e []float32) {
	for pos, center := range sent {
		span := m.cfg.Window - r.IntN(m.cfg.Window)
		lo, hi := max(0, pos-span), min(len(sent)-1, pos+span)
		for c := lo; c <= hi; c++ {
			if c == pos {
				continue
			}
			m.trainPair(r, center, sent[c], alpha, neu1e)
		}
	}
}

// trainPair performs one SGD step predicting context from center against
// Negative noise samples.
func (m *model) trainPair(r *rand.Rand, center, out int32, alpha float32, neu1e []float32) {
	d := m.dims
	l1 := m.syn0[int(center)*d : int(center)*d+d]
	clear(neu1e)
	for s := 0; s <= m.cfg.Negative; s++ {
		target, label := out, float32(1)
		if s > 0 {
			target = m.noise.sample(r.Float64())
			if target == out {
				continue
			}
			label = 0
		}
		l2 := m.syn1neg[int(target)*d : int(target)*d+d]
		f := distance.Dot(l1, l2)
		var g float32
		switch {
		case f >= maxExp:
			g = (label - 1) * alpha
		case f <= -maxExp:
			g = label * alpha
		default:
			g = (label - sigmoid(f)) * alpha
		}
		for k := range l2 {
			neu1e[k] += g * l2[k]
			l2[k] += g * l1[k]
		}
	}
	for k := range l1 {
		l1[k] += neu1e[k]
	}
}
