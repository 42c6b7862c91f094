package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"github.com/ZanzyTHEbar/friendlink-go/internal/vectorstore"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModelMeta describes one training run.
type ModelMeta struct {
	RunID           uuid.UUID       `json:"run_id"`
	Dimensions      int             `json:"dimensions"`
	VocabularySize  int             `json:"vocab_size"`
	Hyperparameters json.RawMessage `json:"hyperparameters"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Model is a loaded model artifact.
type Model struct {
	Meta  ModelMeta
	Store *vectorstore.Store
}

// SaveModel replaces the model artifact in a single transaction. Either the
// whole store and its metadata are written or nothing changes.
func (dm *DBManager) SaveModel(ctx context.Context, store *vectorstore.Store, hyperparameters any) (meta ModelMeta, err error) {
	done := metrics.TimeOp("save_model")
	defer func() { done(err == nil) }()

	params, err := json.Marshal(hyperparameters)
	if err != nil {
		return ModelMeta{}, fmt.Errorf("failed to encode hyperparameters: %w", err)
	}
	meta = ModelMeta{
		RunID:           uuid.New(),
		Dimensions:      store.Dimensions(),
		VocabularySize:  store.Len(),
		Hyperparameters: params,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}

	db, err := dm.getDB(ArtifactModel, true)
	if err != nil {
		return ModelMeta{}, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ModelMeta{}, fmt.Errorf("failed to begin transaction for model save: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range modelSchema(meta.Dimensions) {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return ModelMeta{}, fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO embeddings (id, id_type, kind, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return ModelMeta{}, fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range store.Entries() {
		blob, err := encodeVector(e.Vector)
		if err != nil {
			return ModelMeta{}, fmt.Errorf("failed to encode vector for node %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID.String(), e.ID.TypeName(), e.Kind.String(), blob); err != nil {
			return ModelMeta{}, fmt.Errorf("failed to insert embedding for node %s: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO model_meta (singleton, run_id, dimensions, vocab_size, hyperparameters, created_at) VALUES (1, ?, ?, ?, ?, ?)",
		meta.RunID.String(), meta.Dimensions, meta.VocabularySize, string(params), meta.CreatedAt.Format(time.RFC3339)); err != nil {
		return ModelMeta{}, fmt.Errorf("failed to write model metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ModelMeta{}, fmt.Errorf("failed to commit model save: %w", err)
	}
	dm.closeStmts(ArtifactModel)
	dm.logger.Info("Saved model artifact",
		zap.String("run_id", meta.RunID.String()),
		zap.Int("vocabulary", meta.VocabularySize),
		zap.Int("dimensions", meta.Dimensions))
	return meta, nil
}

// LoadModel reads the model artifact into an immutable store. It fails with
// ErrModelNotFound when the artifact file is absent or holds no model.
func (dm *DBManager) LoadModel(ctx context.Context) (m *Model, err error) {
	done := metrics.TimeOp("load_model")
	defer func() { done(err == nil) }()

	db, err := dm.getDB(ArtifactModel, false)
	if err != nil {
		if errors.Is(err, errArtifactMissing) {
			return nil, fmt.Errorf("%w: %v", apptype.ErrModelNotFound, err)
		}
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for model load: %w", err)
	}
	defer tx.Rollback()

	meta, err := readModelMeta(ctx, tx)
	if err != nil {
		return nil, err
	}
	if dims := detectEmbeddingDims(ctx, tx); dims > 0 && dims != meta.Dimensions {
		return nil, fmt.Errorf("model artifact is inconsistent: %w",
			&apptype.ErrDimensionMismatch{Expected: meta.Dimensions, Actual: dims})
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, id_type, kind, embedding FROM embeddings ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()
	entries := make([]vectorstore.Entry, 0, meta.VocabularySize)
	for rows.Next() {
		var text, typ, kindText string
		var blob []byte
		if err := rows.Scan(&text, &typ, &kindText, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		id, err := apptype.NodeIDFromColumns(text, typ)
		if err != nil {
			return nil, err
		}
		kind, err := apptype.ParseNodeKind(kindText)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		vec, err := decodeVector(blob, meta.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		entries = append(entries, vectorstore.Entry{ID: id, Kind: kind, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}

	store, err := vectorstore.New(meta.Dimensions, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector store: %w", err)
	}
	dm.logger.Info("Loaded model artifact",
		zap.String("run_id", meta.RunID.String()),
		zap.Int("vocabulary", store.Len()),
		zap.Int("dimensions", meta.Dimensions))
	return &Model{Meta: meta, Store: store}, nil
}

func readModelMeta(ctx context.Context, tx *sql.Tx) (ModelMeta, error) {
	ok, err := tableExists(ctx, tx, "model_meta")
	if err != nil {
		return ModelMeta{}, err
	}
	if !ok {
		return ModelMeta{}, fmt.Errorf("%w: artifact has no model_meta table", apptype.ErrModelNotFound)
	}
	var (
		runID, params, created string
		meta                   ModelMeta
	)
	err = tx.QueryRowContext(ctx,
		"SELECT run_id, dimensions, vocab_size, hyperparameters, created_at FROM model_meta WHERE singleton = 1").
		Scan(&runID, &meta.Dimensions, &meta.VocabularySize, &params, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelMeta{}, fmt.Errorf("%w: artifact has no model metadata", apptype.ErrModelNotFound)
	}
	if err != nil {
		return ModelMeta{}, fmt.Errorf("failed to read model metadata: %w", err)
	}
	if meta.RunID, err = uuid.Parse(runID); err != nil {
		return ModelMeta{}, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	if meta.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return ModelMeta{}, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	meta.Hyperparameters = json.RawMessage(params)
	return meta, nil
}
