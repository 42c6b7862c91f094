package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
	"github.com/ZanzyTHEbar/friendlink-go/internal/vectorstore"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func sid(s string) apptype.NodeID { return apptype.StringID(s) }

func fixtureModel(t *testing.T) *database.Model {
	t.Helper()
	store, err := vectorstore.New(2, []vectorstore.Entry{
		{ID: sid("A"), Kind: apptype.KindUser, Vector: []float32{1, 0}},
		{ID: sid("B"), Kind: apptype.KindUser, Vector: []float32{0.9, 0.1}},
		{ID: sid("C"), Kind: apptype.KindUser, Vector: []float32{0.8, 0.3}},
		{ID: sid("D"), Kind: apptype.KindUser, Vector: []float32{-1, 0}},
		{ID: sid("#x"), Kind: apptype.KindFeature, Vector: []float32{1, 0.05}},
		{ID: sid("#y"), Kind: apptype.KindFeature, Vector: []float32{0.7, 0.4}},
	})
	require.NoError(t, err)
	return &database.Model{
		Meta: database.ModelMeta{
			RunID:          uuid.New(),
			Dimensions:     2,
			VocabularySize: store.Len(),
			CreatedAt:      time.Now().UTC(),
		},
		Store: store,
	}
}

type fakeGraph struct {
	neighbors map[apptype.NodeID][]apptype.Node
	err       error
}

func (f *fakeGraph) NeighborsOf(_ context.Context, id apptype.NodeID) ([]apptype.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors[id], nil
}

func fixtureGraph() *fakeGraph {
	return &fakeGraph{neighbors: map[apptype.NodeID][]apptype.Node{
		sid("A"): {{ID: sid("B"), Kind: apptype.KindUser}, {ID: sid("#x"), Kind: apptype.KindFeature}},
	}}
}

func recIDs(res *mcp.CallToolResultFor[apptype.RecommendationResult]) []any {
	ids := make([]any, 0, len(res.StructuredContent.Recommendations))
	for _, r := range res.StructuredContent.Recommendations {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRecommendForUserUsesStoredNeighbors(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), fixtureGraph(), recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"C", "D"}, recIDs(res))
}

func TestRecommendForUserExplicitNeighbors(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), fixtureGraph(), recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "A", KnownNeighbors: []any{"C"}, TopN: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"B"}, recIDs(res))

	// An explicit empty list means no known neighbours.
	res, err = s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "A", KnownNeighbors: []any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"B", "C", "D"}, recIDs(res))
}

func TestRecommendForUserNeighborLookupFailure(t *testing.T) {
	g := &fakeGraph{err: errors.New("graph unavailable")}
	s := NewMCPServer(fixtureModel(t), g, recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"B", "C", "D"}, recIDs(res))
}

func TestRecommendForUserUnknownAndInvalid(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), nil, recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "nobody"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.StructuredContent.Recommendations)
	assert.NotNil(t, res.StructuredContent.Recommendations)

	_, err = s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: 1.5},
	})
	assert.Error(t, err)
}

func TestRecommendFromInterestsHandler(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), nil, recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendFromInterests(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendFromInterestsArgs]{
		Arguments: apptype.RecommendFromInterestsArgs{InterestIDs: []any{"#x", "#y", "#missing"}, TopN: 2},
	})
	require.NoError(t, err)
	require.Len(t, res.StructuredContent.Recommendations, 2)
	for _, r := range res.StructuredContent.Recommendations {
		assert.Equal(t, "user", r.Kind)
	}

	res, err = s.handleRecommendFromInterests(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendFromInterestsArgs]{
		Arguments: apptype.RecommendFromInterestsArgs{InterestIDs: []any{"#missing"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.StructuredContent.Recommendations)
}

func TestRecommendHandlersAcceptHugeTopN(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), fixtureGraph(), recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleRecommendFromInterests(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendFromInterestsArgs]{
		Arguments: apptype.RecommendFromInterestsArgs{InterestIDs: []any{"#x"}, TopN: 1 << 50},
	})
	require.NoError(t, err)
	assert.Len(t, res.StructuredContent.Recommendations, 4)

	forUser, err := s.handleRecommendForUser(context.Background(), nil, &mcp.CallToolParamsFor[apptype.RecommendForUserArgs]{
		Arguments: apptype.RecommendForUserArgs{UserID: "A", TopN: math.MaxInt},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"C", "D"}, recIDs(forUser))
}

func TestNodeNeighborsHandler(t *testing.T) {
	s := NewMCPServer(fixtureModel(t), fixtureGraph(), recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleNodeNeighbors(context.Background(), nil, &mcp.CallToolParamsFor[apptype.NodeNeighborsArgs]{
		Arguments: apptype.NodeNeighborsArgs{NodeID: "A", Limit: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []apptype.NodeView{{ID: "B", Kind: "user"}}, res.StructuredContent.Neighbors)
}

func TestHealthHandler(t *testing.T) {
	model := fixtureModel(t)
	s := NewMCPServer(model, nil, recommend.DefaultOptions(), zaptest.NewLogger(t))

	res, err := s.handleHealth(context.Background(), nil, &mcp.CallToolParamsFor[apptype.HealthArgs]{})
	require.NoError(t, err)
	assert.Equal(t, "friendlink", res.StructuredContent.Name)
	assert.Equal(t, model.Meta.RunID.String(), res.StructuredContent.ModelRunID)
	assert.Equal(t, 6, res.StructuredContent.VocabularySize)
	assert.False(t, res.StructuredContent.GraphLoaded)
}

func callTool(ctx context.Context, t *testing.T, session *mcp.ClientSession, name string, args any, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s returned an error result", name)
	structured, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(structured, out))
}

func TestSSEServer_Tools(t *testing.T) {
	srv := NewMCPServer(fixtureModel(t), fixtureGraph(), recommend.DefaultOptions(), zaptest.NewLogger(t))

	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()

	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	// connect with MCP SSE client
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"recommend_for_user", "recommend_from_interests", "similar_nodes", "node_neighbors", "health",
	}, names)

	var forUser apptype.RecommendationResult
	callTool(ctx, t, session, "recommend_for_user", apptype.RecommendForUserArgs{UserID: "A"}, &forUser)
	require.NotEmpty(t, forUser.Recommendations)
	assert.Equal(t, "C", forUser.Recommendations[0].ID)

	var fromInterests apptype.RecommendationResult
	callTool(ctx, t, session, "recommend_from_interests", apptype.RecommendFromInterestsArgs{InterestIDs: []any{"#x"}}, &fromInterests)
	require.NotEmpty(t, fromInterests.Recommendations)
	for _, r := range fromInterests.Recommendations {
		assert.Equal(t, "user", r.Kind)
	}

	var health apptype.HealthResult
	callTool(ctx, t, session, "health", apptype.HealthArgs{}, &health)
	assert.True(t, health.GraphLoaded)
	assert.Equal(t, 2, health.Dimensions)
}
