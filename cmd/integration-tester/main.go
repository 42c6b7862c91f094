package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	flag "github.com/spf13/pflag"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Detail    string `json:"detail,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

var expectedTools = []string{"recommend_for_user", "recommend_from_interests", "similar_nodes", "health"}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	user := flag.String("user", "", "user id for recommend_for_user (skipped when empty)")
	interests := flag.StringSlice("interests", nil, "interest ids for recommend_from_interests (skipped when empty)")
	topN := flag.Int("top-n", 5, "recommendations requested per query")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 8)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	// Individual steps
	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runHealth(ctx, session))
	if *user != "" {
		steps = append(steps, runRecommendForUser(ctx, session, *user, *topN))
		steps = append(steps, runSimilarNodes(ctx, session, *user))
	}
	if len(*interests) > 0 {
		steps = append(steps, runRecommendFromInterests(ctx, session, *interests, *topN))
	}

	// finalize report
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(report Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

// step times fn and records its error, if any.
func step(name string, fn func() (string, error)) StepResult {
	t0 := time.Now()
	res := StepResult{Name: name}
	detail, err := fn()
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.Detail = detail
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// callTool invokes a tool and decodes its structured content into out.
func callTool(ctx context.Context, session *mcp.ClientSession, name string, args, out any) error {
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err
	}
	if res.IsError {
		return fmt.Errorf("%s returned an error result", name)
	}
	structured, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(structured, out)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	return step("list_tools", func() (string, error) {
		tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(tools.Tools))
		for _, t := range tools.Tools {
			names = append(names, t.Name)
		}
		for _, want := range expectedTools {
			if !slices.Contains(names, want) {
				return fmt.Sprint(names), fmt.Errorf("tool %s not registered", want)
			}
		}
		return fmt.Sprint(names), nil
	})
}

func runHealth(ctx context.Context, session *mcp.ClientSession) StepResult {
	return step("health", func() (string, error) {
		var health apptype.HealthResult
		if err := callTool(ctx, session, "health", apptype.HealthArgs{}, &health); err != nil {
			return "", err
		}
		if health.VocabularySize == 0 {
			return "", fmt.Errorf("model has an empty vocabulary")
		}
		return fmt.Sprintf("run %s, %d nodes x %d dims", health.ModelRunID, health.VocabularySize, health.Dimensions), nil
	})
}

// checkRecommendations verifies the result invariants shared by both queries.
func checkRecommendations(recs []apptype.Recommendation, topN int, exclude any) error {
	if len(recs) > topN {
		return fmt.Errorf("got %d recommendations, want at most %d", len(recs), topN)
	}
	seen := make(map[string]bool, len(recs))
	for i, r := range recs {
		key := fmt.Sprint(r.ID)
		if r.Kind != "user" {
			return fmt.Errorf("recommendation %s has kind %s", key, r.Kind)
		}
		if exclude != nil && key == fmt.Sprint(exclude) {
			return fmt.Errorf("query user %s was recommended", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate recommendation %s", key)
		}
		seen[key] = true
		if i > 0 && r.Score > recs[i-1].Score {
			return fmt.Errorf("recommendations are not ordered by score")
		}
	}
	return nil
}

func runRecommendForUser(ctx context.Context, session *mcp.ClientSession, user string, topN int) StepResult {
	return step("recommend_for_user", func() (string, error) {
		var res apptype.RecommendationResult
		args := apptype.RecommendForUserArgs{UserID: user, TopN: topN}
		if err := callTool(ctx, session, "recommend_for_user", args, &res); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d recommendations", len(res.Recommendations)), checkRecommendations(res.Recommendations, topN, user)
	})
}

func runRecommendFromInterests(ctx context.Context, session *mcp.ClientSession, interests []string, topN int) StepResult {
	return step("recommend_from_interests", func() (string, error) {
		ids := make([]any, len(interests))
		for i, s := range interests {
			ids[i] = s
		}
		var res apptype.RecommendationResult
		args := apptype.RecommendFromInterestsArgs{InterestIDs: ids, TopN: topN}
		if err := callTool(ctx, session, "recommend_from_interests", args, &res); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d recommendations", len(res.Recommendations)), checkRecommendations(res.Recommendations, topN, nil)
	})
}

func runSimilarNodes(ctx context.Context, session *mcp.ClientSession, id string) StepResult {
	return step("similar_nodes", func() (string, error) {
		var res apptype.RecommendationResult
		if err := callTool(ctx, session, "similar_nodes", apptype.SimilarNodesArgs{NodeID: id, K: 5}, &res); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d similar nodes", len(res.Recommendations)), nil
	})
}

func elapsedMsSince(t0 time.Time) int64 {
	return time.Since(t0).Milliseconds()
}
