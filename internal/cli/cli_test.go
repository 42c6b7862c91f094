package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDoc = `{
  "directed": false,
  "nodes": [
    {"id": "A", "kind": "user"},
    {"id": "B", "kind": "user"},
    {"id": "C", "kind": "user"},
    {"id": "#x", "kind": "feature"},
    {"id": "#y", "kind": "feature"}
  ],
  "edges": [
    {"from": "A", "to": "B"},
    {"from": "A", "to": "#x"},
    {"from": "B", "to": "#y"}
  ]
}`

type harness struct {
	t    *testing.T
	dir  string
	base []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FRIENDLINK_CONFIG", "")
	return &harness{
		t:   t,
		dir: dir,
		base: []string{
			"--graph-url", "file:" + filepath.Join(dir, "graph.db"),
			"--model-url", "file:" + filepath.Join(dir, "model.db"),
			"--log-level", "error",
		},
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(append([]string{}, h.base...), args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) importScenario() {
	h.t.Helper()
	path := filepath.Join(h.dir, "graph.json")
	require.NoError(h.t, os.WriteFile(path, []byte(scenarioDoc), 0o600))
	_, err := h.run("graph", "import", path)
	require.NoError(h.t, err)
}

func (h *harness) train() {
	h.t.Helper()
	out, err := h.run("train",
		"--dimensions", "8", "--walk-length", "5", "--num-walks", "10",
		"--p", "1", "--q", "0.5", "--workers", "1", "--seed", "42",
	)
	require.NoError(h.t, err)

	var summary trainSummary
	require.NoError(h.t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(h.t, 50, summary.Walks)
	assert.Equal(h.t, 5, summary.VocabularySize)
	assert.Equal(h.t, 8, summary.Dimensions)
}

func decodeRecs(t *testing.T, out string) []apptype.Recommendation {
	t.Helper()
	var res apptype.RecommendationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res.Recommendations
}

func TestTrainAndRecommend(t *testing.T) {
	h := newHarness(t)
	h.importScenario()
	h.train()

	out, err := h.run("recommend", "interests", "#x", "#y")
	require.NoError(t, err)
	recs := decodeRecs(t, out)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.Equal(t, "user", r.Kind)
	}

	out, err = h.run("recommend", "user", "A", "--known", "B")
	require.NoError(t, err)
	for _, r := range decodeRecs(t, out) {
		assert.Equal(t, "C", r.ID)
	}

	out, err = h.run("recommend", "similar", "A", "--k", "2")
	require.NoError(t, err)
	assert.Len(t, decodeRecs(t, out), 2)
}

func TestGraphInfoAndExport(t *testing.T) {
	h := newHarness(t)
	h.importScenario()

	out, err := h.run("graph", "info")
	require.NoError(t, err)
	var info struct {
		Directed bool `json:"directed"`
		Nodes    int  `json:"nodes"`
		Edges    int  `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 5, info.Nodes)
	assert.Equal(t, 3, info.Edges)

	exported := filepath.Join(h.dir, "out.json")
	_, err = h.run("graph", "export", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"#x"`)
}

func TestTrainWithoutGraph(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("train", "--dimensions", "8", "--workers", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrConfiguration), "got %v", err)
	_, statErr := os.Stat(filepath.Join(h.dir, "model.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecommendWithoutModel(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("recommend", "interests", "#x")
	assert.True(t, errors.Is(err, apptype.ErrModelNotFound), "got %v", err)
}

func TestRecommendIntIDs(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("recommend", "interests", "--int-ids", "abc")
	assert.True(t, errors.Is(err, apptype.ErrConfiguration), "got %v", err)
}

func TestInvalidConfigFlag(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("graph", "info", "--log-level", "loud")
	assert.True(t, errors.Is(err, apptype.ErrConfiguration), "got %v", err)
}
