// Package vectorstore is an immutable in-memory table of node embeddings with
// cosine nearest-neighbour queries. A Store is safe for concurrent readers.
package vectorstore

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/hupe1980/vecgo/distance"
)

// Entry is one stored embedding.
type Entry struct {
	ID     apptype.NodeID
	Kind   apptype.NodeKind
	Vector []float32
}

// Store maps node ids to vectors. Entries keep construction order.
type Store struct {
	dims  int
	index map[apptype.NodeID]int
	ids   []apptype.NodeID
	kinds []apptype.NodeKind
	raw   [][]float32
	// unit holds L2-normalised copies; nil marks a zero vector.
	unit [][]float32
}

var _ apptype.KindResolver = (*Store)(nil)

// New copies entries into a new Store. Every vector must have dims elements
// and ids must be unique.
func New(dims int, entries []Entry) (*Store, error) {
	if dims < 1 {
		return nil, apptype.Configurationf("dimensions must be >= 1, got %d", dims)
	}
	s := &Store{
		dims:  dims,
		index: make(map[apptype.NodeID]int, len(entries)),
		ids:   make([]apptype.NodeID, 0, len(entries)),
		kinds: make([]apptype.NodeKind, 0, len(entries)),
		raw:   make([][]float32, 0, len(entries)),
		unit:  make([][]float32, 0, len(entries)),
	}
	for _, e := range entries {
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("node %s: %w", e.ID, &apptype.ErrDimensionMismatch{Expected: dims, Actual: len(e.Vector)})
		}
		if _, dup := s.index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s", e.ID)
		}
		s.index[e.ID] = len(s.ids)
		s.ids = append(s.ids, e.ID)
		s.kinds = append(s.kinds, e.Kind)
		s.raw = append(s.raw, slices.Clone(e.Vector))
		unit, ok := distance.NormalizeL2Copy(e.Vector)
		if !ok {
			unit = nil
		}
		s.unit = append(s.unit, unit)
	}
	return s, nil
}

// Dimensions returns the vector length D.
func (s *Store) Dimensions() int { return s.dims }

// Len returns the vocabulary size.
func (s *Store) Len() int { return len(s.ids) }

// Has reports whether id has a vector.
func (s *Store) Has(id apptype.NodeID) bool {
	_, ok := s.index[id]
	return ok
}

// IDs returns the vocabulary in construction order.
func (s *Store) IDs() []apptype.NodeID { return slices.Clone(s.ids) }

// KindOf returns the kind stored with id; false means the id is absent.
func (s *Store) KindOf(id apptype.NodeID) (apptype.NodeKind, bool) {
	i, ok := s.index[id]
	if !ok {
		return apptype.KindUnknown, false
	}
	return s.kinds[i], true
}

// VectorOf returns a copy of the vector for id; false means the id is absent.
func (s *Store) VectorOf(id apptype.NodeID) ([]float32, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(s.raw[i]), true
}

// Entries returns copies of all entries in construction order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.ids))
	for i := range s.ids {
		out[i] = Entry{ID: s.ids[i], Kind: s.kinds[i], Vector: slices.Clone(s.raw[i])}
	}
	return out
}

// NearestByID returns up to k ids most similar to id, excluding id itself.
func (s *Store) NearestByID(id apptype.NodeID, k int) ([]apptype.ScoredNode, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apptype.ErrUnknownNode, id)
	}
	if s.unit[i] == nil {
		return nil, fmt.Errorf("node %s: %w", id, apptype.ErrZeroVector)
	}
	return s.topK(s.unit[i], k, i), nil
}

// NearestByVector returns up to k ids most similar to vec. No id is excluded.
func (s *Store) NearestByVector(vec []float32, k int) ([]apptype.ScoredNode, error) {
	if len(vec) != s.dims {
		return nil, &apptype.ErrDimensionMismatch{Expected: s.dims, Actual: len(vec)}
	}
	q, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return nil, apptype.ErrZeroVector
	}
	return s.topK(q, k, -1), nil
}

// topK scans every entry; skip is an entry index to leave out, or -1.
func (s *Store) topK(q []float32, k, skip int) []apptype.ScoredNode {
	if k <= 0 {
		return []apptype.ScoredNode{}
	}
	h := make(resultHeap, 0, min(k, len(s.ids)))
	for i, u := range s.unit {
		if i == skip {
			continue
		}
		var score float64
		if u != nil {
			score = clamp(float64(distance.Dot(q, u)))
		}
		cand := apptype.ScoredNode{ID: s.ids[i], Kind: s.kinds[i], Score: score}
		if len(h) < k {
			heap.Push(&h, cand)
		} else if better(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}
	out := []apptype.ScoredNode(h)
	slices.SortFunc(out, func(a, b apptype.ScoredNode) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		}
		return 0
	})
	return out
}

// better orders by score descending, then by lower lexical id.
func better(a, b apptype.ScoredNode) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID.Less(b.ID)
}

func clamp(x float64) float64 {
	return max(-1, min(1, x))
}

// resultHeap keeps the worst retained candidate at the root.
type resultHeap []apptype.ScoredNode

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(apptype.ScoredNode)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
