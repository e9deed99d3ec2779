package cappedstore

// metrics.go wires per-store operation counters.
//
// Counters are registered in the process-global metrics set, labeled by
// store ident, and exposed in Prometheus text format via WriteMetrics.

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics holds the counters of one record store.
type storeMetrics struct {
	inserts       *metrics.Counter
	deletes       *metrics.Counter
	evicted       *metrics.Counter
	evictsSkipped *metrics.Counter
	deleteVetoes  *metrics.Counter
}

func newStoreMetrics(ident string) *storeMetrics {
	name := func(metric string) string {
		return fmt.Sprintf(`cappedstore_%s_total{ident=%q}`, metric, ident)
	}
	return &storeMetrics{
		inserts:       metrics.GetOrCreateCounter(name("inserts")),
		deletes:       metrics.GetOrCreateCounter(name("deletes")),
		evicted:       metrics.GetOrCreateCounter(name("evicted_records")),
		evictsSkipped: metrics.GetOrCreateCounter(name("evict_passes_skipped")),
		deleteVetoes:  metrics.GetOrCreateCounter(name("delete_vetoes")),
	}
}

// WriteMetrics writes all registered store metrics to w in Prometheus text
// format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
