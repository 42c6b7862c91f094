package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/graph"
	"github.com/ZanzyTHEbar/friendlink-go/internal/metrics"
	"go.uber.org/zap"
)

// GraphInfo summarises a stored graph.
type GraphInfo struct {
	Directed bool   `json:"directed"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Imported string `json:"imported"`
}

// SaveGraph replaces the graph artifact with g in a single transaction.
func (dm *DBManager) SaveGraph(ctx context.Context, g *graph.Graph) (err error) {
	done := metrics.TimeOp("save_graph")
	defer func() { done(err == nil) }()

	db, err := dm.getDB(ArtifactGraph, true)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for graph save: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range graphSchema {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	for _, statement := range []string{"DELETE FROM edges", "DELETE FROM nodes", "DELETE FROM graph_meta"} {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to clear graph artifact: %w", err)
		}
	}

	nodeStmt, err := tx.PrepareContext(ctx, "INSERT INTO nodes (id, id_type, kind) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()
	nodes := g.Nodes()
	for _, n := range nodes {
		if _, err := nodeStmt.ExecContext(ctx, n.ID.String(), n.ID.TypeName(), n.Kind.String()); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO edges (source_id, source_type, target_id, target_type, edge_kind) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	edges := g.Edges()
	for _, e := range edges {
		if _, err := edgeStmt.ExecContext(ctx, e.From.String(), e.From.TypeName(), e.To.String(), e.To.TypeName(), e.Kind); err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO graph_meta (singleton, directed, node_count, edge_count) VALUES (1, ?, ?, ?)",
		boolToInt(g.Directed()), len(nodes), len(edges)); err != nil {
		return fmt.Errorf("failed to write graph metadata: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph save: %w", err)
	}
	dm.closeStmts(ArtifactGraph)
	dm.resetGraphDirected()
	dm.logger.Info("Saved graph artifact", zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))
	return nil
}

// LoadGraph rebuilds the stored graph. A missing file or an artifact without
// nodes is reported as ErrConfiguration.
func (dm *DBManager) LoadGraph(ctx context.Context) (g *graph.Graph, err error) {
	done := metrics.TimeOp("load_graph")
	defer func() { done(err == nil) }()

	db, err := dm.getDB(ArtifactGraph, false)
	if err != nil {
		if errors.Is(err, errArtifactMissing) {
			return nil, apptype.Configurationf("graph artifact not found: %v", err)
		}
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for graph load: %w", err)
	}
	defer tx.Rollback()

	info, err := readGraphInfo(ctx, tx)
	if err != nil {
		return nil, err
	}
	b := graph.NewBuilder(info.Directed)

	rows, err := tx.QueryContext(ctx, "SELECT id, id_type, kind FROM nodes ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	count := 0
	for rows.Next() {
		var text, typ, kindText string
		if err := rows.Scan(&text, &typ, &kindText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		id, err := apptype.NodeIDFromColumns(text, typ)
		if err != nil {
			rows.Close()
			return nil, err
		}
		kind, err := apptype.ParseNodeKind(kindText)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		if err := b.AddNode(id, kind); err != nil {
			rows.Close()
			return nil, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	rows.Close()
	if count == 0 {
		return nil, apptype.Configurationf("graph artifact has no nodes")
	}

	rows, err = tx.QueryContext(ctx, "SELECT source_id, source_type, target_id, target_type, edge_kind FROM edges ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sText, sType, tText, tType, kind string
		if err := rows.Scan(&sText, &sType, &tText, &tType, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		from, err := apptype.NodeIDFromColumns(sText, sType)
		if err != nil {
			return nil, err
		}
		to, err := apptype.NodeIDFromColumns(tText, tType)
		if err != nil {
			return nil, err
		}
		if err := b.AddEdge(from, to, kind); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	g = b.Build()
	dm.logger.Debug("Loaded graph artifact", zap.Int("nodes", g.Len()), zap.Int("edges", len(g.Edges())))
	return g, nil
}

func readGraphInfo(ctx context.Context, tx *sql.Tx) (GraphInfo, error) {
	ok, err := tableExists(ctx, tx, "graph_meta")
	if err != nil {
		return GraphInfo{}, err
	}
	if !ok {
		return GraphInfo{}, apptype.Configurationf("graph artifact has no graph_meta table")
	}
	var info GraphInfo
	var directed int
	var imported sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT directed, node_count, edge_count, imported_at FROM graph_meta WHERE singleton = 1").
		Scan(&directed, &info.Nodes, &info.Edges, &imported)
	if errors.Is(err, sql.ErrNoRows) {
		return GraphInfo{}, apptype.Configurationf("graph artifact has no metadata")
	}
	if err != nil {
		return GraphInfo{}, fmt.Errorf("failed to read graph metadata: %w", err)
	}
	info.Directed = directed != 0
	info.Imported = imported.String
	return info, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GraphInfo returns the stored graph's metadata.
func (dm *DBManager) GraphInfo(ctx context.Context) (GraphInfo, error) {
	db, err := dm.getDB(ArtifactGraph, false)
	if err != nil {
		if errors.Is(err, errArtifactMissing) {
			return GraphInfo{}, apptype.Configurationf("graph artifact not found: %v", err)
		}
		return GraphInfo{}, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return GraphInfo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	return readGraphInfo(ctx, tx)
}

// graphDirected returns the stored directed flag, reading graph_meta only
// on the first call after open or SaveGraph.
func (dm *DBManager) graphDirected(ctx context.Context) (bool, error) {
	dm.metaMu.Lock()
	if dm.directed != nil {
		directed := *dm.directed
		dm.metaMu.Unlock()
		return directed, nil
	}
	gen := dm.metaGen
	dm.metaMu.Unlock()

	info, err := dm.GraphInfo(ctx)
	if err != nil {
		return false, err
	}

	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	// A SaveGraph that committed meanwhile makes this read stale.
	if gen == dm.metaGen {
		dm.directed = &info.Directed
	}
	return info.Directed, nil
}

func (dm *DBManager) resetGraphDirected() {
	dm.metaMu.Lock()
	defer dm.metaMu.Unlock()
	dm.metaGen++
	dm.directed = nil
}

const neighborsSQL = `
	SELECT e.seq AS seq, n.id, n.id_type, n.kind FROM edges e
	JOIN nodes n ON n.id = e.target_id AND n.id_type = e.target_type
	WHERE e.source_id = ? AND e.source_type = ?
	UNION ALL
	SELECT e.seq AS seq, n.id, n.id_type, n.kind FROM edges e
	JOIN nodes n ON n.id = e.source_id AND n.id_type = e.source_type
	WHERE ? = 0 AND e.target_id = ? AND e.target_type = ?
	ORDER BY seq
`

// NeighborsOf returns the stored graph neighbours of id. An unknown id has
// no neighbours.
func (dm *DBManager) NeighborsOf(ctx context.Context, id apptype.NodeID) (out []apptype.Node, err error) {
	done := metrics.TimeOp("neighbors_of")
	defer func() { done(err == nil) }()

	directed, err := dm.graphDirected(ctx)
	if err != nil {
		return nil, err
	}
	db, err := dm.getDB(ArtifactGraph, false)
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, ArtifactGraph, db, neighborsSQL)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, id.String(), id.TypeName(), boolToInt(directed), id.String(), id.TypeName())
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors of %s: %w", id, err)
	}
	defer rows.Close()
	out = []apptype.Node{}
	for rows.Next() {
		var seq int64
		var text, typ, kindText string
		if err := rows.Scan(&seq, &text, &typ, &kindText); err != nil {
			dm.logger.Warn("Failed to scan neighbor row", zap.Stringer("node", id), zap.Error(err))
			continue
		}
		nid, err := apptype.NodeIDFromColumns(text, typ)
		if err != nil {
			dm.logger.Warn("Invalid neighbor id", zap.Stringer("node", id), zap.Error(err))
			continue
		}
		kind, _ := apptype.ParseNodeKind(kindText)
		out = append(out, apptype.Node{ID: nid, Kind: kind})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighbors: %w", err)
	}
	return out, nil
}
