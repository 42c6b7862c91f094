// Package recommend answers connection-recommendation queries against a
// trained embedding store. Every query is a pure function of the store and
// its arguments; failures degrade to an empty result.
package recommend

import (
	"errors"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultTopN is used when a query asks for zero or fewer results.
	DefaultTopN = 5
	// MinOverfetch is the smallest allowed over-fetch margin.
	MinOverfetch = 50
)

// Store is the read-only view of the embedding store the engine needs.
type Store interface {
	VectorOf(id apptype.NodeID) ([]float32, bool)
	Has(id apptype.NodeID) bool
	Dimensions() int
	Len() int
	NearestByID(id apptype.NodeID, k int) ([]apptype.ScoredNode, error)
	NearestByVector(vec []float32, k int) ([]apptype.ScoredNode, error)
}

// Options tune the engine.
type Options struct {
	// Overfetch is the number of extra candidates fetched to absorb filtering.
	// Values below MinOverfetch are raised to it.
	Overfetch int `json:"overfetch" koanf:"overfetch" validate:"gte=0"`
}

// DefaultOptions returns the default tuning.
func DefaultOptions() Options { return Options{Overfetch: MinOverfetch} }

// Engine serves recommend-for-user and cold-start queries.
type Engine struct {
	store     Store
	overfetch int
	logger    *zap.Logger
}

// NewEngine wraps store. A nil logger disables logging.
func NewEngine(store Store, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		overfetch: max(opts.Overfetch, MinOverfetch),
		logger:    logger.Named("recommend"),
	}
}

// Overfetch returns the effective over-fetch margin.
func (e *Engine) Overfetch() int { return e.overfetch }

// RecommendForUser returns up to topN users most similar to userID, skipping
// the user itself, every id in knownNeighbors and anything that is not a user.
// An id outside the vocabulary yields an empty result.
func (e *Engine) RecommendForUser(userID apptype.NodeID, knownNeighbors []apptype.NodeID, topN int) []apptype.ScoredNode {
	topN = e.clampTopN(topN)
	if !e.store.Has(userID) {
		e.logger.Debug("User not in vocabulary", zap.Stringer("user", userID))
		return e.done("for_user", nil)
	}
	candidates, err := e.store.NearestByID(userID, topN+e.overfetch)
	if err != nil {
		return e.done("for_user", e.degrade("for_user", err))
	}

	exclude := make(map[apptype.NodeID]struct{}, len(knownNeighbors)+1)
	exclude[userID] = struct{}{}
	for _, id := range knownNeighbors {
		exclude[id] = struct{}{}
	}
	return e.done("for_user", keepUsers(candidates, exclude, topN))
}

// RecommendFromInterests averages the vectors of the known interest ids and
// returns up to topN users closest to that centroid. Unknown ids are skipped;
// if none are known the result is empty.
func (e *Engine) RecommendFromInterests(interestIDs []apptype.NodeID, topN int) []apptype.ScoredNode {
	topN = e.clampTopN(topN)
	centroid, n := e.centroid(interestIDs)
	if n == 0 {
		e.logger.Debug("No known interests", zap.Int("requested", len(interestIDs)))
		return e.done("from_interests", nil)
	}
	candidates, err := e.store.NearestByVector(centroid, topN+e.overfetch)
	if err != nil {
		return e.done("from_interests", e.degrade("from_interests", err))
	}
	return e.done("from_interests", keepUsers(candidates, nil, topN))
}

// SimilarNodes returns the k nearest nodes of any kind, excluding id itself.
func (e *Engine) SimilarNodes(id apptype.NodeID, k int) []apptype.ScoredNode {
	if k <= 0 {
		k = 10
	}
	res, err := e.store.NearestByID(id, k)
	if err != nil {
		return e.done("similar", e.degrade("similar", err))
	}
	return e.done("similar", res)
}

func (e *Engine) centroid(ids []apptype.NodeID) ([]float32, int) {
	sum := make([]float64, e.store.Dimensions())
	n := 0
	for _, id := range ids {
		v, ok := e.store.VectorOf(id)
		if !ok {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, 0
	}
	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x / float64(n))
	}
	return out, n
}

func (e *Engine) degrade(query string, err error) []apptype.ScoredNode {
	switch {
	case errors.Is(err, apptype.ErrUnknownNode), errors.Is(err, apptype.ErrZeroVector):
		e.logger.Debug("Query has no usable vector", zap.String("query", query), zap.Error(err))
	default:
		e.logger.Warn("Recommendation query failed", zap.String("query", query), zap.Error(err))
	}
	return nil
}

func (e *Engine) done(query string, res []apptype.ScoredNode) []apptype.ScoredNode {
	if res == nil {
		res = []apptype.ScoredNode{}
	}
	metrics.Default().ObserveRecommendations(query, len(res))
	return res
}

func keepUsers(candidates []apptype.ScoredNode, exclude map[apptype.NodeID]struct{}, topN int) []apptype.ScoredNode {
	out := make([]apptype.ScoredNode, 0, min(topN, len(candidates)))
	for _, c := range candidates {
		if len(out) == topN {
			break
		}
		if c.Kind != apptype.KindUser {
			continue
		}
		if _, skip := exclude[c.ID]; skip {
			continue
		}
		out = append(out, c)
	}
	return out
}

// clampTopN applies the default and caps n at the vocabulary size, so that
// topN+overfetch cannot overflow.
func (e *Engine) clampTopN(n int) int {
	return min(normalizeTopN(n), e.store.Len())
}

func normalizeTopN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}
