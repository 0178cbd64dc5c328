package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type streamMetrics struct {
	blocks          prometheus.Counter
	recordsPerBlock prometheus.Histogram
	lastBlock       prometheus.Gauge
}

var (
	streamMetricsOnce sync.Once
	streamRegistry    *streamMetrics
)

// Stream returns the metrics registry tracking the record stream.
func Stream() *streamMetrics {
	streamMetricsOnce.Do(func() {
		streamRegistry = &streamMetrics{
			blocks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "records",
				Name:      "blocks_total",
				Help:      "Count of record stream blocks closed.",
			}),
			recordsPerBlock: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "records",
				Name:      "block_records",
				Help:      "Number of records per closed block.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			}),
			lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ledger",
				Subsystem: "records",
				Name:      "last_block_number",
				Help:      "Number of the most recently closed block.",
			}),
		}
		prometheus.MustRegister(streamRegistry.blocks, streamRegistry.recordsPerBlock, streamRegistry.lastBlock)
	})
	return streamRegistry
}

// RecordBlock records a closed block.
func (m *streamMetrics) RecordBlock(number uint64, records int) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.recordsPerBlock.Observe(float64(records))
	m.lastBlock.Set(float64(number))
}
