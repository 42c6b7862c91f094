package apptype

import (
	"fmt"
	"strings"
)

// NodeKind is the type of a graph node. It is assigned once and never
// inferred from the id.
type NodeKind uint8

const (
	KindUnknown NodeKind = iota
	KindUser
	KindFeature
)

func (k NodeKind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindFeature:
		return "feature"
	default:
		return "unknown"
	}
}

// ParseNodeKind parses "user" or "feature" (case-insensitive).
func ParseNodeKind(s string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return KindUser, nil
	case "feature":
		return KindFeature, nil
	case "unknown", "":
		return KindUnknown, nil
	default:
		return KindUnknown, fmt.Errorf("invalid node kind %q", s)
	}
}

// MarshalText encodes the kind by name.
func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *NodeKind) UnmarshalText(text []byte) error {
	v, err := ParseNodeKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// KindResolver looks up the kind of a node id.
type KindResolver interface {
	KindOf(id NodeID) (NodeKind, bool)
}

// Node is a typed graph node.
type Node struct {
	ID   NodeID   `json:"id"`
	Kind NodeKind `json:"kind"`
}

// Edge connects two nodes. Kind ("observed", "predicted") is carried for the
// presentation layer and ignored by the embedding pipeline.
type Edge struct {
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
	Kind string `json:"kind,omitempty"`
}

// Walk is one traversal: an ordered sequence of node ids.
type Walk []NodeID

// Corpus is the bag of walks the trainer consumes.
type Corpus []Walk

// Tokens returns the total number of node ids across all walks.
func (c Corpus) Tokens() int {
	n := 0
	for _, w := range c {
		n += len(w)
	}
	return n
}

// ScoredNode is one similarity result.
type ScoredNode struct {
	ID    NodeID   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Score float64  `json:"score"`
}
