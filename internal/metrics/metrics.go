// Package metrics exposes Prometheus instrumentation for the inference
// gateway. Every core component gets its own counter/histogram family so an
// operator can tell apart a crypto failure, a quota rejection, and a
// provider outage from the same dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "echolia_gateway"

// Registry is the Prometheus registry all gateway metrics are bound to. A
// fresh registry (rather than the global default) keeps repeated test
// construction from panicking on duplicate registration.
var Registry = prometheus.NewRegistry()

var (
	// CryptoOperations tracks SessionCrypto derive/seal/open calls.
	CryptoOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operations_total",
			Help:      "Total number of SessionCrypto operations",
		},
		[]string{"operation"}, // derive_key, seal, open
	)

	// CryptoErrors tracks SessionCrypto failures (auth failures, bad lengths).
	CryptoErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "errors_total",
			Help:      "Total number of SessionCrypto errors",
		},
		[]string{"operation"},
	)

	// CryptoOperationDuration tracks SessionCrypto operation latency.
	CryptoOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operation_duration_seconds",
			Help:      "SessionCrypto operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15),
		},
		[]string{"operation"},
	)

	// KeyStoreRotations tracks KeyStore identity rotations.
	KeyStoreRotations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keystore",
			Name:      "rotations_total",
			Help:      "Total number of KeyStore rotation attempts",
		},
		[]string{"outcome"}, // rotated, skipped, failed
	)

	// QuotaReservations tracks QuotaLedger.reserve outcomes.
	QuotaReservations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "reservations_total",
			Help:      "Total number of quota reservation attempts",
		},
		[]string{"tier", "outcome"}, // granted, exhausted
	)

	// ProviderRequests tracks ProviderGateway dispatch calls.
	ProviderRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of provider dispatch calls",
		},
		[]string{"provider"},
	)

	// ProviderErrors tracks normalized provider error categories.
	ProviderErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Total number of provider errors by normalized category",
		},
		[]string{"provider", "category"},
	)

	// ProviderTokens tracks prompt/completion token usage per provider.
	ProviderTokens = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "tokens_total",
			Help:      "Total number of tokens consumed, by provider and direction",
		},
		[]string{"provider", "direction"}, // input, output
	)

	// ProviderDuration tracks provider round-trip latency.
	ProviderDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "duration_seconds",
			Help:      "Provider round-trip duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// OrchestratorRequests tracks terminal InferenceOrchestrator outcomes.
	OrchestratorRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "requests_total",
			Help:      "Total number of orchestrated requests by terminal outcome",
		},
		[]string{"outcome"}, // reply, or an error tag from apierror
	)

	// OrchestratorDuration tracks full pipeline latency.
	OrchestratorDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "duration_seconds",
			Help:      "End-to-end orchestrated request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task"},
	)
)
