package attention

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	branchSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mha_branch_selected_total",
		Help: "Total number of Apply calls by dispatch branch taken",
	}, []string{"attn_type", "branch"})

	applyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mha_apply_duration_seconds",
		Help:    "Apply call latency",
		Buckets: prometheus.DefBuckets,
	})

	guardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mha_guard_rejections_total",
		Help: "Total number of calls rejected by the Invariants Guard, by error kind",
	}, []string{"kind"})

	activeCacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mha_active_cache_entries",
		Help: "Number of live KV-cache slots observed at the start of the most recent call",
	}, []string{"slot"})
)

// recordBranch increments the dispatch-branch counter for the given
// attn_type/branch pair (e.g. "context"/"cache_hit", "self"/"no_cache").
func recordBranch(attnType AttnType, branch string) {
	branchSelected.WithLabelValues(attnType.String(), branch).Inc()
}

func recordGuardRejection(k Kind) {
	guardRejections.WithLabelValues(k.String()).Inc()
}

func recordActiveCacheEntries(b binding) {
	activeCacheEntries.WithLabelValues(slotMemoryKeys).Set(boolToFloat(b.memoryKeysLive))
	activeCacheEntries.WithLabelValues(slotMemoryValues).Set(boolToFloat(b.memoryValuesLive))
	activeCacheEntries.WithLabelValues(slotSelfKeys).Set(boolToFloat(b.selfKeysLive))
	activeCacheEntries.WithLabelValues(slotSelfValues).Set(boolToFloat(b.selfValuesLive))
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
