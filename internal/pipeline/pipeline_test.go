package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/embedding"
	"github.com/ZanzyTHEbar/friendlink-go/internal/graph"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
	"github.com/ZanzyTHEbar/friendlink-go/internal/vectorstore"
	"github.com/ZanzyTHEbar/friendlink-go/internal/walk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sid(s string) apptype.NodeID { return apptype.StringID(s) }

func scenarioGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(false)
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, b.AddNode(sid(id), apptype.KindUser))
	}
	for _, id := range []string{"#x", "#y"} {
		require.NoError(t, b.AddNode(sid(id), apptype.KindFeature))
	}
	require.NoError(t, b.AddEdge(sid("A"), sid("B"), "observed"))
	require.NoError(t, b.AddEdge(sid("A"), sid("#x"), "observed"))
	require.NoError(t, b.AddEdge(sid("B"), sid("#y"), "observed"))
	return b.Build()
}

func scenarioOptions() Options {
	opts := DefaultOptions()
	opts.Walk = walk.Config{WalkLength: 5, NumWalks: 10, P: 1, Q: 0.5, Workers: 1, Seed: 42}
	opts.Embedding.Dimensions = 8
	opts.Embedding.Workers = 1
	opts.Embedding.Seed = 42
	return opts
}

func TestScenarioRecommendForUser(t *testing.T) {
	job, err := NewJob(scenarioOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	store, corpus, err := job.Embed(context.Background(), scenarioGraph(t))
	require.NoError(t, err)
	assert.Len(t, corpus, 50)

	engine := recommend.NewEngine(store, recommend.DefaultOptions(), zaptest.NewLogger(t))
	recs := engine.RecommendForUser(sid("A"), []apptype.NodeID{sid("B")}, 5)

	// Only C can survive the filters.
	require.LessOrEqual(t, len(recs), 1)
	for _, r := range recs {
		assert.Equal(t, sid("C"), r.ID)
		assert.Equal(t, apptype.KindUser, r.Kind)
	}
}

func TestScenarioRecommendFromInterests(t *testing.T) {
	job, err := NewJob(scenarioOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	store, _, err := job.Embed(context.Background(), scenarioGraph(t))
	require.NoError(t, err)

	engine := recommend.NewEngine(store, recommend.DefaultOptions(), zaptest.NewLogger(t))
	recs := engine.RecommendFromInterests([]apptype.NodeID{sid("#x"), sid("#y")}, 5)

	require.NotEmpty(t, recs)
	seen := make(map[apptype.NodeID]bool)
	for _, r := range recs {
		assert.Equal(t, apptype.KindUser, r.Kind, "got %s", r.ID)
		assert.False(t, seen[r.ID], "duplicate %s", r.ID)
		seen[r.ID] = true
	}
}

func TestEmbedDeterministic(t *testing.T) {
	g := scenarioGraph(t)
	run := func() *vectorstore.Store {
		job, err := NewJob(scenarioOptions(), zaptest.NewLogger(t))
		require.NoError(t, err)
		store, _, err := job.Embed(context.Background(), g)
		require.NoError(t, err)
		return store
	}

	first, second := run(), run()
	require.Equal(t, first.IDs(), second.IDs())
	for _, id := range first.IDs() {
		a, _ := first.VectorOf(id)
		b, _ := second.VectorOf(id)
		assert.Equal(t, a, b, "vector for %s", id)
	}
}

func TestNewJobRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero walk length", func(o *Options) { o.Walk.WalkLength = 0 }},
		{"negative q", func(o *Options) { o.Walk.Q = -1 }},
		{"negative dimensions", func(o *Options) { o.Embedding.Dimensions = -8 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := scenarioOptions()
			tt.mutate(&opts)
			_, err := NewJob(opts, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apptype.ErrConfiguration), "got %v", err)
		})
	}
}

func TestEmbedEmptyGraph(t *testing.T) {
	job, err := NewJob(scenarioOptions(), nil)
	require.NoError(t, err)

	_, _, err = job.Embed(context.Background(), graph.NewBuilder(false).Build())
	assert.True(t, errors.Is(err, apptype.ErrConfiguration))
}

func openArtifacts(t *testing.T) (*database.DBManager, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := database.NewConfig()
	cfg.GraphURL = "file:" + filepath.Join(dir, "graph.db")
	cfg.ModelURL = "file:" + filepath.Join(dir, "model.db")
	db, err := database.NewDBManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	return db, dir
}

func TestRunPersistsModel(t *testing.T) {
	ctx := context.Background()
	db, _ := openArtifacts(t)
	require.NoError(t, db.SaveGraph(ctx, scenarioGraph(t)))

	job, err := NewJob(scenarioOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	res, err := job.Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 50, res.Walks)
	assert.Equal(t, 5, res.Store.Len())

	model, err := db.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Meta.RunID, model.Meta.RunID)
	assert.Equal(t, 8, model.Meta.Dimensions)
	assert.Equal(t, 5, model.Meta.VocabularySize)
	assert.Contains(t, string(model.Meta.Hyperparameters), `"walk_length":5`)

	kind, ok := model.Store.KindOf(sid("#x"))
	require.True(t, ok)
	assert.Equal(t, apptype.KindFeature, kind)
}

func TestRunMissingGraphWritesNothing(t *testing.T) {
	db, dir := openArtifacts(t)

	job, err := NewJob(scenarioOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = job.Run(context.Background(), db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apptype.ErrConfiguration), "got %v", err)

	_, statErr := os.Stat(filepath.Join(dir, "model.db"))
	assert.True(t, os.IsNotExist(statErr), "model artifact must not be created")
}

type recordingArtifacts struct {
	graph   *graph.Graph
	loadErr error
	saved   int
}

func (r *recordingArtifacts) LoadGraph(context.Context) (*graph.Graph, error) {
	return r.graph, r.loadErr
}

func (r *recordingArtifacts) SaveModel(context.Context, *vectorstore.Store, any) (database.ModelMeta, error) {
	r.saved++
	return database.ModelMeta{}, nil
}

func TestRunAbortsBeforeSave(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		arts := &recordingArtifacts{loadErr: errors.New("boom")}
		job, err := NewJob(scenarioOptions(), nil)
		require.NoError(t, err)
		_, err = job.Run(context.Background(), arts)
		require.Error(t, err)
		assert.Zero(t, arts.saved)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		arts := &recordingArtifacts{graph: scenarioGraph(t)}
		job, err := NewJob(scenarioOptions(), nil)
		require.NoError(t, err)
		_, err = job.Run(ctx, arts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		assert.Zero(t, arts.saved)
	})
}

func TestHyperparametersAreEffective(t *testing.T) {
	opts := scenarioOptions()
	opts.Embedding = embedding.Config{Dimensions: 8}
	job, err := NewJob(opts, nil)
	require.NoError(t, err)

	hp := job.Hyperparameters()
	assert.Equal(t, 8, hp.Embedding.Dimensions)
	assert.Equal(t, embedding.DefaultConfig().Window, hp.Embedding.Window)
	assert.Equal(t, 5, hp.Walk.WalkLength)
}
