// Package pipeline runs the offline training job: graph artifact in, model
// artifact out.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/embedding"
	"github.com/ZanzyTHEbar/friendlink-go/internal/graph"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"github.com/ZanzyTHEbar/friendlink-go/internal/vectorstore"
	"github.com/ZanzyTHEbar/friendlink-go/internal/walk"
	"go.uber.org/zap"
)

// Artifacts is the persistence the job reads from and writes to.
type Artifacts interface {
	LoadGraph(ctx context.Context) (*graph.Graph, error)
	SaveModel(ctx context.Context, store *vectorstore.Store, hyperparameters any) (database.ModelMeta, error)
}

// Options holds the walk and training hyperparameters.
type Options struct {
	Walk      walk.Config
	Embedding embedding.Config
}

// DefaultOptions returns the default job hyperparameters.
func DefaultOptions() Options {
	return Options{Walk: walk.DefaultConfig(), Embedding: embedding.DefaultConfig()}
}

// Hyperparameters is the record persisted with each model.
type Hyperparameters struct {
	Walk      walk.Config      `json:"walk"`
	Embedding embedding.Config `json:"embedding"`
}

// Result summarises a completed job.
type Result struct {
	Meta     database.ModelMeta
	Walks    int
	Tokens   int
	Store    *vectorstore.Store
	Duration time.Duration
}

// Job trains embeddings from a graph.
type Job struct {
	opts    Options
	trainer *embedding.Trainer
	logger  *zap.Logger
}

// NewJob validates the hyperparameters up front so a bad configuration never
// touches the artifacts.
func NewJob(opts Options, logger *zap.Logger) (*Job, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Walk.Validate(); err != nil {
		return nil, err
	}
	trainer, err := embedding.NewTrainer(opts.Embedding, logger)
	if err != nil {
		return nil, err
	}
	opts.Embedding = trainer.Config()
	return &Job{opts: opts, trainer: trainer, logger: logger.Named("pipeline")}, nil
}

// Hyperparameters returns the effective hyperparameters.
func (j *Job) Hyperparameters() Hyperparameters {
	return Hyperparameters{Walk: j.opts.Walk, Embedding: j.opts.Embedding}
}

// Embed generates walks over g and trains vectors from them. Nothing is persisted.
func (j *Job) Embed(ctx context.Context, g *graph.Graph) (*vectorstore.Store, apptype.Corpus, error) {
	if g == nil || g.Len() == 0 {
		return nil, nil, apptype.Configurationf("graph has no nodes")
	}

	done := metrics.TimeOp("generate_walks")
	corpus, err := walk.Generate(ctx, g, j.opts.Walk)
	done(err == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate walks: %w", err)
	}
	metrics.Default().SetCorpusSize(len(corpus), corpus.Tokens())
	j.logger.Info("Generated walks",
		zap.Int("walks", len(corpus)),
		zap.Int("tokens", corpus.Tokens()),
	)

	done = metrics.TimeOp("train_embeddings")
	store, err := j.trainer.Train(ctx, corpus, g)
	done(err == nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to train embeddings: %w", err)
	}
	metrics.Default().SetVocabularySize(store.Len())
	return store, corpus, nil
}

// Run loads the graph, trains and saves the model. Any failure returns before
// the model artifact is written.
func (j *Job) Run(ctx context.Context, artifacts Artifacts) (*Result, error) {
	start := time.Now()

	g, err := artifacts.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	j.logger.Info("Loaded graph",
		zap.Int("nodes", g.Len()),
		zap.Int("edges", len(g.Edges())),
		zap.Bool("directed", g.Directed()),
	)

	store, corpus, err := j.Embed(ctx, g)
	if err != nil {
		return nil, err
	}

	meta, err := artifacts.SaveModel(ctx, store, j.Hyperparameters())
	if err != nil {
		return nil, fmt.Errorf("failed to save model: %w", err)
	}

	res := &Result{
		Meta:     meta,
		Walks:    len(corpus),
		Tokens:   corpus.Tokens(),
		Store:    store,
		Duration: time.Since(start),
	}
	j.logger.Info("Training complete",
		zap.String("run_id", meta.RunID.String()),
		zap.Int("vocabulary", store.Len()),
		zap.Int("dimensions", store.Dimensions()),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}
