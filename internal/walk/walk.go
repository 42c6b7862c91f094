// Package walk generates node2vec-style biased random walks over a graph.
//
// Each walk draws from its own generator seeded from (seed, round, start node),
// so the corpus is reproducible for a fixed seed regardless of worker count.
package walk

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/graph"
	"github.com/ZanzyTHEbar/friendlink-go/internal/rng"
	"golang.org/x/sync/errgroup"
)

// Config holds walk hyperparameters.
type Config struct {
	// WalkLength is the maximum number of nodes per walk.
	WalkLength int `json:"walk_length" koanf:"walk_length" validate:"gte=1"`
	// NumWalks is the number of walks started from every node.
	NumWalks int `json:"num_walks" koanf:"num_walks" validate:"gte=1"`
	// P is the return parameter; higher values make revisiting the previous node less likely.
	P float64 `json:"p" koanf:"p" validate:"gt=0"`
	// Q is the in-out parameter; q < 1 favours moving outward.
	Q float64 `json:"q" koanf:"q" validate:"gt=0"`
	// Workers is the number of goroutines; values below 1 mean 1.
	Workers int   `json:"workers" koanf:"workers" validate:"gte=0"`
	Seed    int64 `json:"seed" koanf:"seed"`
}

// DefaultConfig returns the defaults used by the training job.
func DefaultConfig() Config {
	return Config{
		WalkLength: 30,
		NumWalks:   100,
		P:          1,
		Q:          0.5,
		Workers:    4,
		Seed:       42,
	}
}

// Validate reports unusable hyperparameters as ErrConfiguration.
func (c Config) Validate() error {
	switch {
	case c.WalkLength < 1:
		return apptype.Configurationf("walk_length must be >= 1, got %d", c.WalkLength)
	case c.NumWalks < 1:
		return apptype.Configurationf("num_walks must be >= 1, got %d", c.NumWalks)
	case !(c.P > 0) || math.IsInf(c.P, 0):
		return apptype.Configurationf("p must be a positive finite number, got %v", c.P)
	case !(c.Q > 0) || math.IsInf(c.Q, 0):
		return apptype.Configurationf("q must be a positive finite number, got %v", c.Q)
	}
	return nil
}

// Generate returns NumWalks walks from every node of g, ordered by
// (round, node insertion order). The graph is only read.
func Generate(ctx context.Context, g *graph.Graph, cfg Config) (apptype.Corpus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := g.Len()
	corpus := make(apptype.Corpus, cfg.NumWalks*n)
	if n == 0 {
		return corpus, nil
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	w := &walker{g: g, length: cfg.WalkLength, invP: 1 / cfg.P, invQ: 1 / cfg.Q, seed: cfg.Seed}
	eg, egCtx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		eg.Go(func() error {
			weights := make([]float64, 0, 16)
			for round := 0; round < cfg.NumWalks; round++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				for start := lo; start < hi; start++ {
					corpus[round*n+start] = w.walk(round, start, &weights)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return corpus, nil
}

type walker struct {
	g          *graph.Graph
	length     int
	invP, invQ float64
	seed       int64
}

func (w *walker) walk(round, start int, weights *[]float64) apptype.Walk {
	r := rng.Derive(w.seed, uint64(round), uint64(start))
	path := make(apptype.Walk, 1, w.length)
	path[0] = w.g.NodeAt(start).ID

	prev, cur := -1, start
	for len(path) < w.length {
		nbrs := w.g.NeighborIndices(cur)
		if len(nbrs) == 0 {
			break
		}
		var next int
		if prev < 0 {
			next = nbrs[r.IntN(len(nbrs))]
		} else {
			next = w.biasedStep(r, prev, nbrs, weights)
		}
		path = append(path, w.g.NodeAt(next).ID)
		prev, cur = cur, next
	}
	return path
}

// biasedStep samples the next node having arrived at the current node from prev.
func (w *walker) biasedStep(r *rand.Rand, prev int, nbrs []int, weights *[]float64) int {
	ws := (*weights)[:0]
	total := 0.0
	for _, x := range nbrs {
		var wt float64
		switch {
		case x == prev:
			wt = w.invP
		case w.g.HasEdgeIndex(prev, x):
			wt = 1
		default:
			wt = w.invQ
		}
		total += wt
		ws = append(ws, total)
	}
	*weights = ws

	x := r.Float64() * total
	for i, cum := range ws {
		if x < cum {
			return nbrs[i]
		}
	}
	return nbrs[len(nbrs)-1]
}
