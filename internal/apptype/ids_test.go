package apptype

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDIntAndStringAreDistinct(t *testing.T) {
	assert.NotEqual(t, IntID(5), StringID("5"))
	assert.Equal(t, IntID(5), IntID(5))
	assert.Equal(t, "5", IntID(5).String())
	assert.Equal(t, "5", StringID("5").String())

	m := map[NodeID]int{IntID(5): 1, StringID("5"): 2}
	assert.Len(t, m, 2)
}

func TestNodeIDOrdering(t *testing.T) {
	ids := []NodeID{StringID("b"), IntID(10), StringID("10"), StringID("a"), IntID(2)}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	assert.Equal(t, []NodeID{IntID(10), StringID("10"), IntID(2), StringID("a"), StringID("b")}, ids)
}

func TestNodeIDJSON(t *testing.T) {
	raw, err := json.Marshal([]NodeID{IntID(7), StringID("#x")})
	require.NoError(t, err)
	assert.JSONEq(t, `[7,"#x"]`, string(raw))

	var back []NodeID
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []NodeID{IntID(7), StringID("#x")}, back)

	var bad NodeID
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestParseNodeID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      any
		want    NodeID
		wantErr bool
	}{
		{name: "string", in: "alice", want: StringID("alice")},
		{name: "int", in: 3, want: IntID(3)},
		{name: "int64", in: int64(-4), want: IntID(-4)},
		{name: "integral float", in: float64(42), want: IntID(42)},
		{name: "json number", in: json.Number("9"), want: IntID(9)},
		{name: "fractional float", in: 1.25, wantErr: true},
		{name: "fractional json number", in: json.Number("1.5"), wantErr: true},
		{name: "nil", in: nil, wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseNodeID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNodeIDsReportsIndex(t *testing.T) {
	_, err := ParseNodeIDs([]any{"a", 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}

func TestNodeIDFromColumns(t *testing.T) {
	id, err := NodeIDFromColumns("12", "int")
	require.NoError(t, err)
	assert.Equal(t, IntID(12), id)

	id, err = NodeIDFromColumns("12", "str")
	require.NoError(t, err)
	assert.Equal(t, StringID("12"), id)

	_, err = NodeIDFromColumns("x", "int")
	assert.Error(t, err)
	_, err = NodeIDFromColumns("x", "float")
	assert.Error(t, err)
}

func TestNodeKindText(t *testing.T) {
	raw, err := json.Marshal(Node{ID: StringID("#x"), Kind: KindFeature})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"#x","kind":"feature"}`, string(raw))

	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"kind":"USER"}`), &n))
	assert.Equal(t, Node{ID: IntID(3), Kind: KindUser}, n)

	assert.Error(t, json.Unmarshal([]byte(`{"id":3,"kind":"robot"}`), &n))
}

func FuzzParseNodeIDRoundTrip(f *testing.F) {
	f.Add("alice", int64(0), false)
	f.Add("", int64(-1), true)
	f.Add("10", int64(10), true)
	f.Fuzz(func(t *testing.T, s string, n int64, useInt bool) {
		var id NodeID
		if useInt {
			id = IntID(n)
		} else {
			id = StringID(s)
		}
		raw, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back NodeID
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back != id {
			// invalid UTF-8 is replaced by encoding/json
			if !useInt && json.Valid(raw) && back.String() != s {
				return
			}
			t.Fatalf("round trip mismatch: %v != %v", back, id)
		}
		again, err := NodeIDFromColumns(id.String(), id.TypeName())
		if err != nil || again != id {
			t.Fatalf("column round trip failed for %v: %v", id, err)
		}
	})
}
