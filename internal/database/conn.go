package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	"go.uber.org/zap"
)

// Artifact names one of the managed databases.
type Artifact string

const (
	ArtifactGraph Artifact = "graph"
	ArtifactModel Artifact = "model"
)

// errArtifactMissing is returned when a local artifact file does not exist
// and the caller asked not to create it.
var errArtifactMissing = errors.New("artifact file does not exist")

// DBManager owns the connections to the graph and model artifacts. Handles
// are opened lazily and cached until Close.
type DBManager struct {
	config *Config
	logger *zap.Logger

	mu  sync.RWMutex
	dbs map[Artifact]*sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[Artifact]map[string]*sql.Stmt

	// directed caches graph_meta.directed for NeighborsOf; SaveGraph resets it.
	metaMu   sync.Mutex
	metaGen  uint64
	directed *bool
}

// NewDBManager creates a new database manager. No connection is opened yet.
func NewDBManager(config *Config, logger *zap.Logger) (*DBManager, error) {
	if config == nil {
		config = NewConfig()
	}
	if config.GraphURL == "" || config.ModelURL == "" {
		return nil, fmt.Errorf("graph and model artifact URLs are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBManager{
		config:    config,
		logger:    logger.Named("database"),
		dbs:       make(map[Artifact]*sql.DB),
		stmtCache: make(map[Artifact]map[string]*sql.Stmt),
	}, nil
}

func (dm *DBManager) urlFor(a Artifact) string {
	if a == ArtifactGraph {
		return dm.config.GraphURL
	}
	return dm.config.ModelURL
}

// getDB retrieves the connection for an artifact, opening it if necessary.
// With create=false a missing local file yields errArtifactMissing instead
// of an empty database.
func (dm *DBManager) getDB(a Artifact, create bool) (*sql.DB, error) {
	dm.mu.RLock()
	db, ok := dm.dbs[a]
	dm.mu.RUnlock()
	if ok {
		return db, nil
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	// Double-check if another goroutine opened the DB while we were waiting for the lock
	if db, ok = dm.dbs[a]; ok {
		return db, nil
	}

	dbURL := dm.urlFor(a)
	if path, local := localPath(dbURL); local {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to stat %s artifact: %w", a, err)
			}
			if !create {
				return nil, fmt.Errorf("%s artifact %s: %w", a, path, errArtifactMissing)
			}
			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create directory for %s artifact: %w", a, err)
				}
			}
		}
	}

	newDB, err := sql.Open("libsql", dm.withAuth(dbURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector for %s artifact: %w", a, err)
	}

	// Apply connection pool tuning from config
	if dm.config.MaxOpenConns > 0 {
		newDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		newDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		newDB.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		newDB.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.dbs[a] = newDB
	dm.logger.Debug("Opened artifact database", zap.String("artifact", string(a)))
	return newDB, nil
}

// withAuth appends the auth token to remote URLs.
func (dm *DBManager) withAuth(dbURL string) string {
	if strings.HasPrefix(dbURL, "file:") || dm.config.AuthToken == "" {
		return dbURL
	}
	// Build URL safely and append/override the authToken parameter
	if u, err := url.Parse(dbURL); err == nil {
		q := u.Query()
		q.Set("authToken", dm.config.AuthToken)
		u.RawQuery = q.Encode()
		return u.String()
	}
	// Fallback: naive append with encoding
	if strings.Contains(dbURL, "?") {
		return dbURL + "&authToken=" + url.QueryEscape(dm.config.AuthToken)
	}
	return dbURL + "?authToken=" + url.QueryEscape(dm.config.AuthToken)
}

// localPath returns the filesystem path of a file: URL. In-memory URLs are
// not local files.
func localPath(dbURL string) (string, bool) {
	if !strings.HasPrefix(dbURL, "file:") {
		return "", false
	}
	rest := strings.TrimPrefix(dbURL, "file:")
	path, query, _ := strings.Cut(rest, "?")
	if strings.Contains(query, "mode=memory") || path == ":memory:" || path == "" {
		return "", false
	}
	return path, true
}

// Close closes all cached statements and connections.
func (dm *DBManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var errs []error
	for a, db := range dm.dbs {
		dm.closeStmts(a)
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s artifact: %w", a, err))
		}
		delete(dm.dbs, a)
	}
	return errors.Join(errs...)
}
