package apptype

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type idType uint8

const (
	idString idType = iota
	idInt
)

// NodeID identifies a node in the graph. It is either an integer or a string;
// IntID(5) and StringID("5") are different ids. The zero value is the empty
// string id. NodeID is comparable and is used directly as a map key by the
// graph, walk and vector-store layers.
type NodeID struct {
	typ idType
	s   string
	n   int64
}

// StringID returns a string-typed node id.
func StringID(s string) NodeID { return NodeID{typ: idString, s: s} }

// IntID returns an integer-typed node id.
func IntID(n int64) NodeID { return NodeID{typ: idInt, n: n} }

// String returns the canonical text form of the id.
func (id NodeID) String() string {
	if id.typ == idInt {
		return strconv.FormatInt(id.n, 10)
	}
	return id.s
}

// TypeName returns "int" or "str"; used as the id_type column by the artifact store.
func (id NodeID) TypeName() string {
	if id.typ == idInt {
		return "int"
	}
	return "str"
}

// Compare orders ids lexically by canonical text. Ids with the same text
// order integers first.
func (id NodeID) Compare(other NodeID) int {
	if c := strings.Compare(id.String(), other.String()); c != 0 {
		return c
	}
	switch {
	case id.typ == other.typ:
		return 0
	case id.typ == idInt:
		return -1
	default:
		return 1
	}
}

// Less reports whether id orders before other.
func (id NodeID) Less(other NodeID) bool { return id.Compare(other) < 0 }

// MarshalJSON encodes integer ids as JSON numbers and string ids as JSON strings.
func (id NodeID) MarshalJSON() ([]byte, error) {
	if id.typ == idInt {
		return []byte(strconv.FormatInt(id.n, 10)), nil
	}
	return json.Marshal(id.s)
}

// UnmarshalJSON accepts either a JSON string or an integral JSON number.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("node id must be a string or an integer, got %s", string(data))
	}
	*id = IntID(n)
	return nil
}

// ParseNodeID converts loosely typed input (as decoded from tool arguments)
// into a NodeID. Strings become string ids; integral numbers become integer ids.
func ParseNodeID(v any) (NodeID, error) {
	switch x := v.(type) {
	case NodeID:
		return x, nil
	case string:
		return StringID(x), nil
	case int:
		return IntID(int64(x)), nil
	case int32:
		return IntID(int64(x)), nil
	case int64:
		return IntID(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return NodeID{}, fmt.Errorf("node id must be integral, got %v", x)
		}
		return IntID(int64(x)), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return NodeID{}, fmt.Errorf("node id must be integral, got %s", x.String())
		}
		return IntID(n), nil
	case nil:
		return NodeID{}, fmt.Errorf("node id cannot be null")
	default:
		return NodeID{}, fmt.Errorf("unsupported node id type: %T", v)
	}
}

// ParseNodeIDs converts a list of loosely typed ids; it fails on the first bad element.
func ParseNodeIDs(values []any) ([]NodeID, error) {
	out := make([]NodeID, 0, len(values))
	for i, v := range values {
		id, err := ParseNodeID(v)
		if err != nil {
			return nil, fmt.Errorf("invalid node id at index %d: %w", i, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// NodeIDFromColumns rebuilds an id from its persisted (id, id_type) columns.
func NodeIDFromColumns(text, typ string) (NodeID, error) {
	switch typ {
	case "str":
		return StringID(text), nil
	case "int":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return NodeID{}, fmt.Errorf("invalid integer node id %q: %w", text, err)
		}
		return IntID(n), nil
	default:
		return NodeID{}, fmt.Errorf("unknown node id type %q", typ)
	}
}

// Value returns the id as a plain Go value (int64 or string) for JSON views.
func (id NodeID) Value() any {
	if id.typ == idInt {
		return id.n
	}
	return id.s
}
