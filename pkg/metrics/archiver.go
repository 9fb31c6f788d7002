package metrics

import "github.com/prometheus/client_golang/prometheus"

// ArchiverMetrics tracks the usage-event archival loop.
type ArchiverMetrics struct {
	archived prometheus.Counter
	failed   prometheus.Counter
	batches  prometheus.Counter
}

// NewArchiverMetrics registers the archiver counters on the provided registerer.
func NewArchiverMetrics(reg prometheus.Registerer) *ArchiverMetrics {
	if reg == nil {
		return &ArchiverMetrics{}
	}
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_events_archived_total",
		Help: "Usage events copied to the warehouse.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_events_archive_failures_total",
		Help: "Usage event batches that failed to archive.",
	})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_archive_batches_total",
		Help: "Archive batches processed.",
	})
	reg.MustRegister(archived, failed, batches)
	return &ArchiverMetrics{archived: archived, failed: failed, batches: batches}
}

// AddArchived counts events successfully copied.
func (m *ArchiverMetrics) AddArchived(n int) {
	if m == nil || m.archived == nil {
		return
	}
	m.archived.Add(float64(n))
}

// IncFailure counts one failed batch.
func (m *ArchiverMetrics) IncFailure() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// IncBatch counts one processed batch.
func (m *ArchiverMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
