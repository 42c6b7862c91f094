package apptype

// Node ids in tool arguments are typed `any` so the generated input schema
// accepts both JSON strings and JSON integers; handlers convert them with
// ParseNodeID.

// RecommendForUserArgs represents the arguments for the recommend_for_user tool
type RecommendForUserArgs struct {
	UserID         any   `json:"userId" jsonschema:"The user node id (string or integer) to recommend connections for."`
	KnownNeighbors []any `json:"knownNeighbors,omitempty" jsonschema:"Node ids the user is already connected to. If omitted and a graph is loaded, the user's graph neighbors are used."`
	TopN           int   `json:"topN,omitempty" jsonschema:"Maximum number of recommendations to return (default 5)."`
}

// RecommendFromInterestsArgs represents the arguments for the recommend_from_interests tool
type RecommendFromInterestsArgs struct {
	InterestIDs []any `json:"interestIds" jsonschema:"Feature (interest) node ids describing a new user."`
	TopN        int   `json:"topN,omitempty" jsonschema:"Maximum number of recommendations to return (default 5)."`
}

// SimilarNodesArgs represents the arguments for the similar_nodes tool
type SimilarNodesArgs struct {
	NodeID any `json:"nodeId" jsonschema:"The node id to find nearest neighbors for."`
	K      int `json:"k,omitempty" jsonschema:"Number of neighbors to return (default 10)."`
}

// NodeNeighborsArgs represents the arguments for the node_neighbors tool
type NodeNeighborsArgs struct {
	NodeID any `json:"nodeId" jsonschema:"The node id whose graph neighbors should be returned."`
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of neighbors to return (0 = all)."`
}

// Recommendation is the wire view of a ScoredNode.
type Recommendation struct {
	ID    any     `json:"id"`
	Kind  string  `json:"kind"`
	Score float64 `json:"score"`
}

// RecommendationResult is the structured result of the recommendation tools.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// NodeView is the wire view of a typed node.
type NodeView struct {
	ID   any    `json:"id"`
	Kind string `json:"kind"`
}

// NeighborsResult is the structured result of node_neighbors.
type NeighborsResult struct {
	Neighbors []NodeView `json:"neighbors"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Revision       string `json:"revision"`
	BuildDate      string `json:"buildDate"`
	ModelRunID     string `json:"modelRunId"`
	Dimensions     int    `json:"dimensions"`
	VocabularySize int    `json:"vocabularySize"`
	GraphLoaded    bool   `json:"graphLoaded"`
}

// ToRecommendations converts scored nodes to their wire view.
func ToRecommendations(scored []ScoredNode) []Recommendation {
	out := make([]Recommendation, 0, len(scored))
	for _, s := range scored {
		out = append(out, Recommendation{ID: s.ID.Value(), Kind: s.Kind.String(), Score: s.Score})
	}
	return out
}
