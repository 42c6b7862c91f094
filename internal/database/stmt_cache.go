package database

import (
	"context"
	"database/sql"
	"fmt"
)

// getPreparedStmt returns or prepares and caches a statement for an artifact DB.
func (dm *DBManager) getPreparedStmt(ctx context.Context, a Artifact, db *sql.DB, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if cache, ok := dm.stmtCache[a]; ok {
		if stmt, ok2 := cache[sqlText]; ok2 {
			dm.stmtMu.RUnlock()
			return stmt, nil
		}
	}
	dm.stmtMu.RUnlock()

	// prepare and store
	stmt, err := db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	if _, ok := dm.stmtCache[a]; !ok {
		dm.stmtCache[a] = make(map[string]*sql.Stmt)
	}
	if existing, ok := dm.stmtCache[a][sqlText]; ok {
		_ = stmt.Close()
		return existing, nil
	}
	dm.stmtCache[a][sqlText] = stmt
	return stmt, nil
}

// closeStmts closes and drops the cached statements of one artifact.
func (dm *DBManager) closeStmts(a Artifact) {
	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	for _, stmt := range dm.stmtCache[a] {
		_ = stmt.Close()
	}
	delete(dm.stmtCache, a)
}
