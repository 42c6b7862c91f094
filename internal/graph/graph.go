// Package graph holds the typed user/feature graph consumed by the walk
// generator. A Graph is immutable once built and safe for concurrent readers.
package graph

import (
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
)

type edgeKey struct{ a, b int }

// Builder accumulates nodes and edges and freezes them into a Graph.
type Builder struct {
	directed bool
	index    map[apptype.NodeID]int
	nodes    []apptype.Node
	adj      [][]int
	edgeSet  map[edgeKey]struct{}
	edges    []apptype.Edge
}

// NewBuilder returns an empty builder. For undirected graphs every edge is
// traversable in both directions.
func NewBuilder(directed bool) *Builder {
	return &Builder{
		directed: directed,
		index:    make(map[apptype.NodeID]int),
		edgeSet:  make(map[edgeKey]struct{}),
	}
}

// AddNode registers a node. Re-adding an id with the same kind is a no-op;
// a different kind is an error since kinds never change once assigned.
func (b *Builder) AddNode(id apptype.NodeID, kind apptype.NodeKind) error {
	if kind != apptype.KindUser && kind != apptype.KindFeature {
		return fmt.Errorf("node %s: kind must be user or feature, got %s", id, kind)
	}
	if i, ok := b.index[id]; ok {
		if b.nodes[i].Kind != kind {
			return fmt.Errorf("node %s: kind already assigned as %s, cannot change to %s", id, b.nodes[i].Kind, kind)
		}
		return nil
	}
	b.index[id] = len(b.nodes)
	b.nodes = append(b.nodes, apptype.Node{ID: id, Kind: kind})
	b.adj = append(b.adj, nil)
	return nil
}

// AddEdge connects two registered nodes. Self-loops and duplicates are dropped.
func (b *Builder) AddEdge(from, to apptype.NodeID, kind string) error {
	fi, ok := b.index[from]
	if !ok {
		return fmt.Errorf("edge %s -> %s: unknown source node", from, to)
	}
	ti, ok := b.index[to]
	if !ok {
		return fmt.Errorf("edge %s -> %s: unknown target node", from, to)
	}
	if fi == ti {
		return nil
	}
	key := edgeKey{fi, ti}
	if !b.directed && ti < fi {
		key = edgeKey{ti, fi}
	}
	if _, dup := b.edgeSet[key]; dup {
		return nil
	}
	b.edgeSet[key] = struct{}{}
	b.edges = append(b.edges, apptype.Edge{From: from, To: to, Kind: kind})
	b.adj[fi] = append(b.adj[fi], ti)
	if !b.directed {
		b.adj[ti] = append(b.adj[ti], fi)
	}
	return nil
}

// Build freezes the current contents. The builder stays usable; later
// additions do not affect graphs already built.
func (b *Builder) Build() *Graph {
	g := &Graph{
		directed: b.directed,
		index:    make(map[apptype.NodeID]int, len(b.index)),
		nodes:    slices.Clone(b.nodes),
		adj:      make([][]int, len(b.adj)),
		edges:    slices.Clone(b.edges),
		adjSet:   make([]map[int]struct{}, len(b.adj)),
	}
	for id, i := range b.index {
		g.index[id] = i
	}
	for i, nbrs := range b.adj {
		g.adj[i] = slices.Clone(nbrs)
		set := make(map[int]struct{}, len(nbrs))
		for _, n := range nbrs {
			set[n] = struct{}{}
		}
		g.adjSet[i] = set
	}
	return g
}

// Graph is an immutable typed graph. Neighbour lists keep insertion order.
type Graph struct {
	directed bool
	index    map[apptype.NodeID]int
	nodes    []apptype.Node
	adj      [][]int
	adjSet   []map[int]struct{}
	edges    []apptype.Edge
}

var _ apptype.KindResolver = (*Graph)(nil)

// Directed reports whether edges are one-way.
func (g *Graph) Directed() bool { return g.directed }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []apptype.Node { return slices.Clone(g.nodes) }

// Edges returns the edges in insertion order, each undirected edge once.
func (g *Graph) Edges() []apptype.Edge { return slices.Clone(g.edges) }

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id apptype.NodeID) bool {
	_, ok := g.index[id]
	return ok
}

// KindOf returns the declared kind of id; false means the id is absent.
func (g *Graph) KindOf(id apptype.NodeID) (apptype.NodeKind, bool) {
	i, ok := g.index[id]
	if !ok {
		return apptype.KindUnknown, false
	}
	return g.nodes[i].Kind, true
}

// Neighbors returns the out-neighbours of id, or nil if id is unknown.
func (g *Graph) Neighbors(id apptype.NodeID) []apptype.NodeID {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]apptype.NodeID, len(g.adj[i]))
	for k, n := range g.adj[i] {
		out[k] = g.nodes[n].ID
	}
	return out
}

// IsNeighbor reports whether an edge a -> b exists.
func (g *Graph) IsNeighbor(a, b apptype.NodeID) bool {
	ai, ok := g.index[a]
	if !ok {
		return false
	}
	bi, ok := g.index[b]
	if !ok {
		return false
	}
	return g.HasEdgeIndex(ai, bi)
}

// Index-based accessors used on the walk hot path.

// NodeAt returns the node at dense index i.
func (g *Graph) NodeAt(i int) apptype.Node { return g.nodes[i] }

// NeighborIndices returns the adjacency of node i. Callers must not modify it.
func (g *Graph) NeighborIndices(i int) []int { return g.adj[i] }

// HasEdgeIndex reports whether an edge a -> b exists.
func (g *Graph) HasEdgeIndex(a, b int) bool {
	_, ok := g.adjSet[a][b]
	return ok
}
