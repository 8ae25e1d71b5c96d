// Package metrics exposes Prometheus instrumentation for the session core.
// All collectors are registered on the default registry and served by the
// HTTP layer's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "sessions_active",
		Help:      "Number of live sessions",
	})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "sessions_created_total",
		Help:      "Total sessions created",
	})

	SessionsDestroyedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "sessions_destroyed_total",
		Help:      "Total sessions destroyed",
	})

	InferenceTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "inference_tokens_total",
		Help:      "Total tokens generated across all sessions",
	})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "inference_duration_seconds",
		Help:      "End-to-end duration of inference requests",
		Buckets:   prometheus.DefBuckets,
	})

	InferenceFinishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "inference_finish_total",
		Help:      "Inference terminals by finish reason",
	}, []string{"reason"})

	PoolBytesInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "pool_bytes_in_use",
		Help:      "Bytes currently allocated per pool",
	}, []string{"pool"})

	PoolBytesPeak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "pool_bytes_peak",
		Help:      "High-water mark of allocated bytes per pool",
	}, []string{"pool"})

	LoraLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "lora_loads_total",
		Help:      "Total LoRA adapter loads",
	})

	PromptCacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "prompt_cache_ops_total",
		Help:      "Prompt cache operations by kind",
	}, []string{"op"})

	NativeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "core",
		Name:      "native_errors_total",
		Help:      "Non-zero native statuses by operation",
	}, []string{"op"})
)

// RecordInference observes one finished request.
func RecordInference(reason string, tokens int, duration time.Duration) {
	InferenceTokensTotal.Add(float64(tokens))
	InferenceDuration.Observe(duration.Seconds())
	InferenceFinishTotal.WithLabelValues(reason).Inc()
}

// RecordPoolUsage updates the gauges for one pool.
func RecordPoolUsage(pool string, inUse, peak int64) {
	PoolBytesInUse.WithLabelValues(pool).Set(float64(inUse))
	PoolBytesPeak.WithLabelValues(pool).Set(float64(peak))
}

// RecordNativeError counts a failed native call.
func RecordNativeError(op string) {
	NativeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordPromptCacheOp counts a prompt cache load or clear.
func RecordPromptCacheOp(op string) {
	PromptCacheOpsTotal.WithLabelValues(op).Inc()
}
