//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	opTotal     *prom.CounterVec
	opSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	walks       prom.Gauge
	tokens      prom.Gauge
	vocabulary  prom.Gauge
	recResults  *prom.HistogramVec
}

func (p *promRecorder) IncOpTotal(op string, success bool) {
	p.opTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveOpSeconds(op string, success bool, seconds float64) {
	p.opSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) SetCorpusSize(walks, tokens int) {
	p.walks.Set(float64(walks))
	p.tokens.Set(float64(tokens))
}

func (p *promRecorder) SetVocabularySize(n int) { p.vocabulary.Set(float64(n)) }

func (p *promRecorder) ObserveRecommendations(query string, results int) {
	p.recResults.WithLabelValues(query).Observe(float64(results))
}

func newPromRecorder(registry *prom.Registry) *promRecorder {
	p := &promRecorder{
		opTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "friendlink_ops_total",
			Help: "Total number of pipeline and artifact operations",
		}, []string{"op", "success"}),
		opSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "friendlink_op_seconds",
			Help:    "Pipeline and artifact operation duration in seconds",
			Buckets: prom.ExponentialBuckets(0.001, 4, 10),
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		walks: prom.NewGauge(prom.GaugeOpts{
			Name: "friendlink_corpus_walks",
			Help: "Number of walks in the last generated corpus",
		}),
		tokens: prom.NewGauge(prom.GaugeOpts{
			Name: "friendlink_corpus_tokens",
			Help: "Number of node ids in the last generated corpus",
		}),
		vocabulary: prom.NewGauge(prom.GaugeOpts{
			Name: "friendlink_vocabulary_size",
			Help: "Number of node ids with a trained or loaded vector",
		}),
		recResults: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "friendlink_recommendation_results",
			Help:    "Number of results returned per recommendation query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"query"}),
	}
	registry.MustRegister(p.opTotal, p.opSeconds, p.toolTotal, p.toolSeconds,
		p.walks, p.tokens, p.vocabulary, p.recResults)
	return p
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	SetRecorder(newPromRecorder(registry))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
