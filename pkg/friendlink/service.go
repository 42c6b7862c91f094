// Package friendlink provides a library-first API for training and querying
// FriendLink embeddings without the MCP transport.
package friendlink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/graph"
	"github.com/ZanzyTHEbar/friendlink-go/internal/pipeline"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
	"go.uber.org/zap"
)

// Service owns the artifact connections and the currently loaded model.
type Service struct {
	db     *database.DBManager
	opts   recommend.Options
	logger *zap.Logger

	mu     sync.RWMutex
	model  *database.Model
	engine *recommend.Engine
}

// Open constructs a Service. Artifacts are opened lazily.
func Open(cfg *Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		return nil, apptype.Configurationf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dm, err := database.NewDBManager(cfg.toInternal(), logger)
	if err != nil {
		return nil, err
	}
	return &Service{db: dm, opts: cfg.recommendOptions(), logger: logger.Named("friendlink")}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.db.Close() }

// ImportGraph decodes a typed graph document and replaces the graph artifact.
func (s *Service) ImportGraph(ctx context.Context, r io.Reader) (*graph.Graph, error) {
	g, err := graph.DecodeDocument(r)
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveGraph(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// SaveGraph replaces the graph artifact.
func (s *Service) SaveGraph(ctx context.Context, g *graph.Graph) error {
	return s.db.SaveGraph(ctx, g)
}

// ExportGraph writes the stored graph as a document.
func (s *Service) ExportGraph(ctx context.Context, w io.Writer) error {
	g, err := s.db.LoadGraph(ctx)
	if err != nil {
		return err
	}
	return graph.EncodeDocument(w, g)
}

// GraphInfo returns metadata of the stored graph.
func (s *Service) GraphInfo(ctx context.Context) (database.GraphInfo, error) {
	return s.db.GraphInfo(ctx)
}

// Train runs the training job and, on success, makes the new model current.
func (s *Service) Train(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	job, err := pipeline.NewJob(opts, s.logger)
	if err != nil {
		return nil, err
	}
	res, err := job.Run(ctx, s.db)
	if err != nil {
		return nil, err
	}
	s.install(&database.Model{Meta: res.Meta, Store: res.Store})
	return res, nil
}

func (s *Service) install(m *database.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
	s.engine = recommend.NewEngine(m.Store, s.opts, s.logger)
}

// Model returns the current model, loading it from the artifact on first use.
func (s *Service) Model(ctx context.Context) (*database.Model, error) {
	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	loaded, err := s.db.LoadModel(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		s.model = loaded
		s.engine = recommend.NewEngine(loaded.Store, s.opts, s.logger)
	}
	return s.model, nil
}

func (s *Service) currentEngine(ctx context.Context) (*recommend.Engine, error) {
	if _, err := s.Model(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, nil
}

// RecommendForUser recommends users similar to user, excluding known. When
// known is nil the user's stored graph neighbours are excluded instead. The
// only error is a missing model.
func (s *Service) RecommendForUser(ctx context.Context, user apptype.NodeID, known []apptype.NodeID, topN int) ([]apptype.ScoredNode, error) {
	engine, err := s.currentEngine(ctx)
	if err != nil {
		return nil, err
	}
	if known == nil {
		nodes, err := s.db.NeighborsOf(ctx, user)
		if err != nil {
			s.logger.Debug("No stored neighbors", zap.Stringer("user", user), zap.Error(err))
		}
		for _, n := range nodes {
			known = append(known, n.ID)
		}
	}
	return engine.RecommendForUser(user, known, topN), nil
}

// RecommendFromInterests recommends users for a cold-start interest set.
func (s *Service) RecommendFromInterests(ctx context.Context, interests []apptype.NodeID, topN int) ([]apptype.ScoredNode, error) {
	engine, err := s.currentEngine(ctx)
	if err != nil {
		return nil, err
	}
	return engine.RecommendFromInterests(interests, topN), nil
}

// Similar returns the k nearest nodes of any kind.
func (s *Service) Similar(ctx context.Context, id apptype.NodeID, k int) ([]apptype.ScoredNode, error) {
	engine, err := s.currentEngine(ctx)
	if err != nil {
		return nil, err
	}
	return engine.SimilarNodes(id, k), nil
}

// Neighbors returns the stored graph neighbours of id.
func (s *Service) Neighbors(ctx context.Context, id apptype.NodeID) ([]apptype.Node, error) {
	nodes, err := s.db.NeighborsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get neighbors: %w", err)
	}
	return nodes, nil
}
