package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idA = apptype.StringID("A")
	idB = apptype.StringID("B")
	idC = apptype.StringID("C")
	idX = apptype.StringID("#x")
	idY = apptype.StringID("#y")
)

// scenarioGraph builds users {A,B,C}, features {#x,#y}; A-B, A-#x, B-#y.
func scenarioGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder(false)
	for _, id := range []apptype.NodeID{idA, idB, idC} {
		require.NoError(t, b.AddNode(id, apptype.KindUser))
	}
	for _, id := range []apptype.NodeID{idX, idY} {
		require.NoError(t, b.AddNode(id, apptype.KindFeature))
	}
	require.NoError(t, b.AddEdge(idA, idB, "observed"))
	require.NoError(t, b.AddEdge(idA, idX, ""))
	require.NoError(t, b.AddEdge(idB, idY, ""))
	return b.Build()
}

func TestUndirectedGraphQueries(t *testing.T) {
	g := scenarioGraph(t)

	assert.Equal(t, 5, g.Len())
	assert.False(t, g.Directed())
	assert.Equal(t, []apptype.NodeID{idB, idX}, g.Neighbors(idA))
	assert.Equal(t, []apptype.NodeID{idA, idY}, g.Neighbors(idB))
	assert.Empty(t, g.Neighbors(idC))
	assert.Nil(t, g.Neighbors(apptype.StringID("nope")))

	assert.True(t, g.IsNeighbor(idA, idB))
	assert.True(t, g.IsNeighbor(idB, idA))
	assert.False(t, g.IsNeighbor(idA, idY))

	kind, ok := g.KindOf(idX)
	require.True(t, ok)
	assert.Equal(t, apptype.KindFeature, kind)
	_, ok = g.KindOf(apptype.IntID(1))
	assert.False(t, ok)

	assert.Len(t, g.Edges(), 3)
}

func TestDirectedGraphDoesNotMirror(t *testing.T) {
	b := NewBuilder(true)
	require.NoError(t, b.AddNode(apptype.IntID(1), apptype.KindUser))
	require.NoError(t, b.AddNode(apptype.IntID(2), apptype.KindUser))
	require.NoError(t, b.AddEdge(apptype.IntID(1), apptype.IntID(2), ""))
	g := b.Build()

	assert.True(t, g.IsNeighbor(apptype.IntID(1), apptype.IntID(2)))
	assert.False(t, g.IsNeighbor(apptype.IntID(2), apptype.IntID(1)))
	assert.Empty(t, g.Neighbors(apptype.IntID(2)))
}

func TestBuilderRejectsKindChange(t *testing.T) {
	b := NewBuilder(false)
	require.NoError(t, b.AddNode(idA, apptype.KindUser))
	require.NoError(t, b.AddNode(idA, apptype.KindUser))
	assert.Error(t, b.AddNode(idA, apptype.KindFeature))
	assert.Error(t, b.AddNode(idB, apptype.KindUnknown))
}

func TestBuilderEdgeRules(t *testing.T) {
	b := NewBuilder(false)
	require.NoError(t, b.AddNode(idA, apptype.KindUser))
	require.NoError(t, b.AddNode(idB, apptype.KindUser))

	assert.Error(t, b.AddEdge(idA, idC, ""))
	require.NoError(t, b.AddEdge(idA, idA, ""))
	require.NoError(t, b.AddEdge(idA, idB, ""))
	require.NoError(t, b.AddEdge(idB, idA, ""))

	g := b.Build()
	assert.Equal(t, []apptype.NodeID{idB}, g.Neighbors(idA))
	assert.Len(t, g.Edges(), 1)
}

func TestBuildIsSnapshot(t *testing.T) {
	b := NewBuilder(false)
	require.NoError(t, b.AddNode(idA, apptype.KindUser))
	g := b.Build()
	require.NoError(t, b.AddNode(idB, apptype.KindUser))
	assert.Equal(t, 1, g.Len())
	assert.False(t, g.Has(idB))
}

func TestDocumentRoundTrip(t *testing.T) {
	g := scenarioGraph(t)

	var buf bytes.Buffer
	require.NoError(t, EncodeDocument(&buf, g))

	back, err := DecodeDocument(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), back.Nodes())
	assert.Equal(t, g.Edges(), back.Edges())
	assert.Equal(t, g.Neighbors(idB), back.Neighbors(idB))
}

func TestDecodeDocumentMixedIDs(t *testing.T) {
	doc := `{"directed":false,
	  "nodes":[{"id":1,"kind":"user"},{"id":"1","kind":"feature"}],
	  "edges":[{"from":1,"to":"1"}]}`
	g, err := DecodeDocument(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.True(t, g.IsNeighbor(apptype.IntID(1), apptype.StringID("1")))
}

func TestDecodeDocumentErrors(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"nodes":[{"id":1,"kind":"alien"}]}`))
	assert.Error(t, err)
	_, err = DecodeDocument(strings.NewReader(`{"nodes":[{"id":1,"kind":"user"}],"edges":[{"from":1,"to":2}]}`))
	assert.Error(t, err)
}
