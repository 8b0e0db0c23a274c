package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FundWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundgate_fund_writes_total",
		Help: "Fund settings writes by operation and outcome",
	}, []string{"op", "status"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundgate_validation_failures_total",
		Help: "Rejected fund settings fields by failure kind",
	}, []string{"kind", "field"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundgate_request_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ChainChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundgate_chain_checks_total",
		Help: "On-chain verification checks by field and status",
	}, []string{"field", "status"})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundgate_cache_requests_total",
		Help: "Fund cache lookups by result",
	}, []string{"result"})

	SignatureChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundgate_signature_checks_total",
		Help: "Write authorization checks by method and outcome",
	}, []string{"method", "result"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fundgate_stream_clients",
		Help: "Connected change-stream clients",
	})
)
