package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photostack",
		Name:      "ingests_total",
		Help:      "Total number of ingestion calls by outcome",
	}, []string{"outcome"}) // committed, dedup, failed

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photostack",
		Name:      "stage_failures_total",
		Help:      "Total number of non-fatal pipeline stage failures",
	}, []string{"stage"}) // preprocess, ocr, autotag, embed

	OracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photostack",
		Name:      "oracle_duration_seconds",
		Help:      "Duration of external model oracle calls",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"oracle"}) // ocr, vision, embed, llm

	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photostack",
		Name:      "searches_total",
		Help:      "Total number of similarity searches by kind",
	}, []string{"kind"}) // text, image, qa

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photostack",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photostack",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	WatchSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photostack",
		Name:      "watch_submissions_total",
		Help:      "Candidate files submitted by discovery front ends",
	}, []string{"outcome"}) // ok, failed, skipped
)
