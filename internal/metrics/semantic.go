package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage outcome labels.
const (
	StageHit              = "hit"
	StageEmpty            = "empty"
	StageSkippedGate      = "skipped_gate"
	StageSkippedStageGate = "skipped_stage_gate"
	StageNoMatch          = "no_match"
)

// Semantic engine Prometheus metrics.
var (
	RecognizedTagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagsearch",
			Name:      "recognized_tags_total",
			Help:      "Recognized query tags by match type",
		},
		[]string{"match_type"}, // EXACT / SPELLCHECK / UNRECOGNISED
	)

	StageOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagsearch",
			Name:      "semantic_stage_outcomes_total",
			Help:      "Semantic stage evaluations by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tagsearch",
			Name:      "store_query_duration_seconds",
			Help:      "Tag and product store query duration in seconds",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"query"}, // exact / phrase / fuzzy / stage / keyword / typeahead
	)

	TagUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagsearch",
			Name:      "tag_upserts_total",
			Help:      "Tag document upserts by result",
		},
		[]string{"result"}, // written / failed
	)
)

var registerOnce sync.Once

// RegisterSemanticMetrics registers the semantic engine metrics. Safe to call more than once.
func RegisterSemanticMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RecognizedTagsTotal)
		prometheus.MustRegister(StageOutcomesTotal)
		prometheus.MustRegister(StoreQueryDuration)
		prometheus.MustRegister(TagUpsertsTotal)
	})
}
