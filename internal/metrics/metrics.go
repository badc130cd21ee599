package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	keywordRowsDesc = prometheus.NewDesc(
		"keyword_insight_keyword_rows",
		"Stored keyword rows by intent",
		[]string{"intent"},
		nil,
	)

	volumeLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyword_insight_volume_lookups_total",
		Help: "Search volume lookups by outcome",
	}, []string{"outcome"})

	estimates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keyword_insight_estimates_total",
		Help: "AI estimates by source",
	}, []string{"source"})
)

// IntentCounter reports how many stored rows carry each intent.
type IntentCounter interface {
	CountByIntent(ctx context.Context) (map[string]int64, error)
}

// KeywordCollector is a custom Prometheus collector that reads keyword row
// counts from the store on each scrape.
type KeywordCollector struct {
	store  IntentCounter
	logger *zap.Logger
}

// NewKeywordCollector creates a collector over store.
func NewKeywordCollector(store IntentCounter, logger *zap.Logger) *KeywordCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordCollector{store: store, logger: logger}
}

// Describe sends the metric descriptor to the channel.
func (c *KeywordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- keywordRowsDesc
}

// Collect queries the store and emits one gauge per intent.
func (c *KeywordCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.store.CountByIntent(context.Background())
	if err != nil {
		c.logger.Error("failed to collect keyword row metrics", zap.Error(err))
		return
	}
	for intent, n := range counts {
		if intent == "" {
			intent = "none"
		}
		ch <- prometheus.MustNewConstMetric(keywordRowsDesc, prometheus.GaugeValue, float64(n), intent)
	}
}

var initOnce sync.Once

// Init registers the collectors with the default registry. Must be called
// once at startup; later calls are no-ops.
func Init(store IntentCounter, logger *zap.Logger) {
	initOnce.Do(func() {
		prometheus.MustRegister(volumeLookups, estimates, NewKeywordCollector(store, logger))
	})
}

// RecordVolumeLookup counts a search volume lookup outcome.
func RecordVolumeLookup(outcome string) {
	volumeLookups.WithLabelValues(outcome).Inc()
}

// RecordEstimate counts where an estimate came from.
func RecordEstimate(source string) {
	estimates.WithLabelValues(source).Inc()
}
