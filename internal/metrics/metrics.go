package metrics

import (
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and optional Prometheus-backed implementation enabled via config.

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	// Pipeline phases and artifact I/O.
	IncOpTotal(op string, success bool)
	ObserveOpSeconds(op string, success bool, seconds float64)
	// MCP tool handlers.
	IncToolTotal(tool string, success bool)
	ObserveToolSeconds(tool string, success bool, seconds float64)
	// Training shape.
	SetCorpusSize(walks, tokens int)
	SetVocabularySize(n int)
	// Recommendation result sizes, by query type.
	ObserveRecommendations(query string, results int)
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncOpTotal(string, bool)                  {}
func (n *noopRecorder) ObserveOpSeconds(string, bool, float64)   {}
func (n *noopRecorder) IncToolTotal(string, bool)                {}
func (n *noopRecorder) ObserveToolSeconds(string, bool, float64) {}
func (n *noopRecorder) SetCorpusSize(int, int)                   {}
func (n *noopRecorder) SetVocabularySize(int)                    {}
func (n *noopRecorder) ObserveRecommendations(string, int)       {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation. nil restores the no-op.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	if r == nil {
		r = &noopRecorder{}
	}
	recorder = r
}

// TimeOp is a helper to time pipeline phases and artifact operations.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncOpTotal(op, success)
		Default().ObserveOpSeconds(op, success, dur)
	}
}

// TimeTool is a helper to time tool handler operations.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolTotal(tool, success)
		Default().ObserveToolSeconds(tool, success, dur)
	}
}

// Config controls the Prometheus exporter.
type Config struct {
	Prometheus bool   `koanf:"prometheus"`
	Addr       string `koanf:"addr"`
}

// Init enables the Prometheus exporter when cfg.Prometheus is set. It starts
// a small HTTP server on cfg.Addr (default :9090) with endpoints /metrics and
// /healthz (200 ok).
func Init(cfg Config) error {
	if !cfg.Prometheus {
		return nil
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":9090"
	}
	return enablePrometheus(addr)
}

// enablePrometheus is provided by build-tagged files.
