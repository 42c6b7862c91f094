package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// graphSchema is the DDL of the graph artifact. seq columns preserve
// insertion order so a reloaded graph samples walks identically.
var graphSchema = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
        seq INTEGER PRIMARY KEY,
        id TEXT NOT NULL,
        id_type TEXT NOT NULL CHECK (id_type IN ('int', 'str')),
        kind TEXT NOT NULL CHECK (kind IN ('user', 'feature')),
        UNIQUE (id, id_type)
    )`,
	`CREATE TABLE IF NOT EXISTS edges (
        seq INTEGER PRIMARY KEY,
        source_id TEXT NOT NULL,
        source_type TEXT NOT NULL,
        target_id TEXT NOT NULL,
        target_type TEXT NOT NULL,
        edge_kind TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS graph_meta (
        singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
        directed INTEGER NOT NULL,
        node_count INTEGER NOT NULL,
        edge_count INTEGER NOT NULL,
        imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, source_type)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, target_type)`,
}

// modelSchema returns the model artifact DDL for the given vector dimension.
// The embeddings table is recreated on every save since its column type
// carries the dimension.
func modelSchema(dims int) []string {
	return []string{
		`DROP TABLE IF EXISTS embeddings`,
		fmt.Sprintf(`CREATE TABLE embeddings (
        seq INTEGER PRIMARY KEY,
        id TEXT NOT NULL,
        id_type TEXT NOT NULL CHECK (id_type IN ('int', 'str')),
        kind TEXT NOT NULL,
        embedding F32_BLOB(%d) NOT NULL,
        UNIQUE (id, id_type)
    )`, dims),
		`CREATE TABLE IF NOT EXISTS model_meta (
        singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
        run_id TEXT NOT NULL,
        dimensions INTEGER NOT NULL,
        vocab_size INTEGER NOT NULL,
        hyperparameters TEXT NOT NULL,
        created_at TEXT NOT NULL
    )`,
		`DELETE FROM model_meta`,
	}
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tableExists reports whether a table is present in the schema.
func tableExists(ctx context.Context, q queryRower, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema for table %s: %w", name, err)
	}
	return n > 0, nil
}

// detectEmbeddingDims introspects the schema to infer the F32_BLOB size of
// embeddings.embedding, falling back to a sample row.
func detectEmbeddingDims(ctx context.Context, db queryRower) int {
	// Approach 1: read CREATE TABLE statement and parse F32_BLOB(n)
	var sqlText string
	_ = db.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type='table' AND name='embeddings'").Scan(&sqlText)
	if sqlText != "" {
		low := strings.ToLower(sqlText)
		if idx := strings.Index(low, "f32_blob("); idx >= 0 {
			rest := low[idx+len("f32_blob("):]
			if end := strings.Index(rest, ")"); end > 0 {
				if n, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	// Approach 2: try a sample read and infer length/4
	var blob []byte
	_ = db.QueryRowContext(ctx, "SELECT embedding FROM embeddings LIMIT 1").Scan(&blob)
	if len(blob) > 0 && len(blob)%4 == 0 {
		return len(blob) / 4
	}
	return 0
}
