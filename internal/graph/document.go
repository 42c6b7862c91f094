package graph

import (
	"fmt"
	"io"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/goccy/go-json"
)

// Document is the JSON interchange form of an already-typed graph:
//
//	{"directed": false,
//	 "nodes": [{"id": "alice", "kind": "user"}, {"id": "#go", "kind": "feature"}],
//	 "edges": [{"from": "alice", "to": "#go", "kind": "observed"}]}
type Document struct {
	Directed bool           `json:"directed"`
	Nodes    []apptype.Node `json:"nodes"`
	Edges    []apptype.Edge `json:"edges"`
}

// DecodeDocument reads a Document and builds the graph it describes.
func DecodeDocument(r io.Reader) (*Graph, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode graph document: %w", err)
	}
	return doc.Build()
}

// Build validates the document and freezes it into a Graph.
func (d Document) Build() (*Graph, error) {
	b := NewBuilder(d.Directed)
	for _, n := range d.Nodes {
		if err := b.AddNode(n.ID, n.Kind); err != nil {
			return nil, err
		}
	}
	for _, e := range d.Edges {
		if err := b.AddEdge(e.From, e.To, e.Kind); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// ToDocument is the inverse of Document.Build.
func ToDocument(g *Graph) Document {
	return Document{Directed: g.Directed(), Nodes: g.Nodes(), Edges: g.Edges()}
}

// EncodeDocument writes g as an indented Document.
func EncodeDocument(w io.Writer, g *Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToDocument(g))
}
