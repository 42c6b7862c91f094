package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const serverName = "friendlink"

// Neighborhood looks up stored graph neighbours.
type Neighborhood interface {
	NeighborsOf(ctx context.Context, id apptype.NodeID) ([]apptype.Node, error)
}

// MCPServer exposes the recommendation engine as MCP tools.
type MCPServer struct {
	server *mcp.Server
	engine *recommend.Engine
	meta   database.ModelMeta
	graph  Neighborhood
	logger *zap.Logger
}

// NewMCPServer wires a loaded model into an MCP server. graph may be nil, in
// which case recommend_for_user requires explicit knownNeighbors and
// node_neighbors is not registered.
func NewMCPServer(model *database.Model, graph Neighborhood, opts recommend.Options, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		engine: recommend.NewEngine(model.Store, opts, logger),
		meta:   model.Meta,
		graph:  graph,
		logger: logger.Named("server"),
	}
	mcpServer.setupToolHandlers()
	return mcpServer
}

func mustSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		var zero T
		panic(fmt.Sprintf("failed to create schema for %T: %v", zero, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	readOnly := &mcp.ToolAnnotations{ReadOnlyHint: true}

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "recommend_for_user",
		Title:        "Recommend For User",
		Description:  "Recommend new user connections for an existing user by embedding similarity. Features, the user and known neighbors are excluded.",
		InputSchema:  mustSchema[apptype.RecommendForUserArgs](),
		OutputSchema: mustSchema[apptype.RecommendationResult](),
	}, s.handleRecommendForUser)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "recommend_from_interests",
		Title:        "Recommend From Interests",
		Description:  "Recommend users for a new user described only by interest (feature) ids, using the centroid of the interest vectors.",
		InputSchema:  mustSchema[apptype.RecommendFromInterestsArgs](),
		OutputSchema: mustSchema[apptype.RecommendationResult](),
	}, s.handleRecommendFromInterests)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "similar_nodes",
		Title:        "Similar Nodes",
		Description:  "Nearest nodes of any kind to the given node by cosine similarity.",
		InputSchema:  mustSchema[apptype.SimilarNodesArgs](),
		OutputSchema: mustSchema[apptype.RecommendationResult](),
	}, s.handleSimilarNodes)

	if s.graph != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Annotations:  readOnly,
			Name:         "node_neighbors",
			Title:        "Node Neighbors",
			Description:  "Direct graph neighbors of a node, in edge insertion order.",
			InputSchema:  mustSchema[apptype.NodeNeighborsArgs](),
			OutputSchema: mustSchema[apptype.NeighborsResult](),
		}, s.handleNodeNeighbors)
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  readOnly,
		Name:         "health",
		Title:        "Health Check",
		Description:  "Returns server build and loaded model information.",
		InputSchema:  mustSchema[apptype.HealthArgs](),
		OutputSchema: mustSchema[apptype.HealthResult](),
	}, s.handleHealth)
}

func recommendationResult(text string, scored []apptype.ScoredNode) *mcp.CallToolResultFor[apptype.RecommendationResult] {
	return &mcp.CallToolResultFor[apptype.RecommendationResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.RecommendationResult{Recommendations: apptype.ToRecommendations(scored)},
	}
}

// knownNeighbors resolves the exclusion set for recommend_for_user. Explicit
// ids win; otherwise the stored graph is consulted. Lookup failures degrade
// to no exclusions beyond the user itself.
func (s *MCPServer) knownNeighbors(ctx context.Context, user apptype.NodeID, explicit []any) ([]apptype.NodeID, error) {
	if explicit != nil {
		return apptype.ParseNodeIDs(explicit)
	}
	if s.graph == nil {
		return nil, nil
	}
	nodes, err := s.graph.NeighborsOf(ctx, user)
	if err != nil {
		s.logger.Warn("Neighbor lookup failed", zap.Stringer("user", user), zap.Error(err))
		return nil, nil
	}
	ids := make([]apptype.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}

// handleRecommendForUser handles the recommend_for_user tool call
func (s *MCPServer) handleRecommendForUser(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RecommendForUserArgs],
) (*mcp.CallToolResultFor[apptype.RecommendationResult], error) {
	done := metrics.TimeTool("recommend_for_user")
	var success bool
	defer func() { done(success) }()

	user, err := apptype.ParseNodeID(params.Arguments.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid userId: %w", err)
	}
	known, err := s.knownNeighbors(ctx, user, params.Arguments.KnownNeighbors)
	if err != nil {
		return nil, fmt.Errorf("invalid knownNeighbors: %w", err)
	}

	recs := s.engine.RecommendForUser(user, known, params.Arguments.TopN)
	success = true
	return recommendationResult(fmt.Sprintf("Found %d recommendations for %s", len(recs), user), recs), nil
}

// handleRecommendFromInterests handles the recommend_from_interests tool call
func (s *MCPServer) handleRecommendFromInterests(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RecommendFromInterestsArgs],
) (*mcp.CallToolResultFor[apptype.RecommendationResult], error) {
	done := metrics.TimeTool("recommend_from_interests")
	var success bool
	defer func() { done(success) }()

	interests, err := apptype.ParseNodeIDs(params.Arguments.InterestIDs)
	if err != nil {
		return nil, fmt.Errorf("invalid interestIds: %w", err)
	}

	recs := s.engine.RecommendFromInterests(interests, params.Arguments.TopN)
	success = true
	return recommendationResult(fmt.Sprintf("Found %d recommendations for %d interests", len(recs), len(interests)), recs), nil
}

// handleSimilarNodes handles the similar_nodes tool call
func (s *MCPServer) handleSimilarNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SimilarNodesArgs],
) (*mcp.CallToolResultFor[apptype.RecommendationResult], error) {
	done := metrics.TimeTool("similar_nodes")
	var success bool
	defer func() { done(success) }()

	id, err := apptype.ParseNodeID(params.Arguments.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid nodeId: %w", err)
	}

	similar := s.engine.SimilarNodes(id, params.Arguments.K)
	success = true
	return recommendationResult(fmt.Sprintf("Found %d similar nodes", len(similar)), similar), nil
}

// handleNodeNeighbors returns the stored graph neighbours of a node
func (s *MCPServer) handleNodeNeighbors(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.NodeNeighborsArgs],
) (*mcp.CallToolResultFor[apptype.NeighborsResult], error) {
	done := metrics.TimeTool("node_neighbors")
	var success bool
	defer func() { done(success) }()

	id, err := apptype.ParseNodeID(params.Arguments.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid nodeId: %w", err)
	}
	nodes, err := s.graph.NeighborsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("neighbors failed: %w", err)
	}
	if limit := params.Arguments.Limit; limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}

	views := make([]apptype.NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, apptype.NodeView{ID: n.ID.Value(), Kind: n.Kind.String()})
	}
	success = true
	return &mcp.CallToolResultFor[apptype.NeighborsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d neighbors", len(views))}},
		StructuredContent: apptype.NeighborsResult{Neighbors: views},
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health")
	defer func() { done(true) }()
	res := apptype.HealthResult{
		Name:           serverName,
		Version:        buildinfo.Version,
		Revision:       buildinfo.Revision,
		BuildDate:      buildinfo.BuildDate,
		ModelRunID:     s.meta.RunID.String(),
		Dimensions:     s.meta.Dimensions,
		VocabularySize: s.meta.VocabularySize,
		GraphLoaded:    s.graph != nil,
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: res,
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("Stdio MCP server starting", zap.String("model_run_id", s.meta.RunID.String()))
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint.
// It returns nil once ctx is cancelled and the listener has shut down.
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("SSE MCP server listening", zap.String("addr", addr), zap.String("endpoint", endpoint))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
