// Package stats backs the bridge's monotonic counters with Prometheus
// metrics, so the same values the Controller logs in its periodic
// telemetry line are also registered with a Prometheus registerer. This
// module does not serve them over HTTP itself.
package stats

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the process-wide counters named by the data model: added,
// retried, dropped, exceptions, not_found, moved_to_public,
// dumped_to_secret, archived. Every counter only ever increases.
type Stats struct {
	Added          prometheus.Counter
	Retried        prometheus.Counter
	Dropped        prometheus.Counter
	Exceptions     prometheus.Counter
	NotFound       prometheus.Counter
	MovedToPublic  prometheus.Counter
	DumpedToSecret prometheus.Counter
	Archived       prometheus.Counter
}

// New creates a Stats instance with counters registered under reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the default
// global registry.
func New(reg prometheus.Registerer) *Stats {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archivarius_bridge",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Stats{
		Added:          counter("added_total", "Work items pushed onto the primary queue by a feeder."),
		Retried:        counter("retried_total", "Work items pushed onto the retry queue."),
		Dropped:        counter("dropped_total", "Work items dropped after exceeding the retry limit."),
		Exceptions:     counter("exceptions_total", "Errors encountered while processing a work item."),
		NotFound:       counter("not_found_total", "Upstream dumps that returned 404."),
		MovedToPublic:  counter("moved_to_public_total", "Documents mirrored into the public archive."),
		DumpedToSecret: counter("dumped_to_secret_total", "Sealed dumps written to the secret store."),
		Archived:       counter("archived_total", "Items that completed the full archival state machine."),
	}
}

// Snapshot is a point-in-time read of every counter, used by the
// Controller's periodic telemetry line.
type Snapshot struct {
	Added          float64
	Retried        float64
	Dropped        float64
	Exceptions     float64
	NotFound       float64
	MovedToPublic  float64
	DumpedToSecret float64
	Archived       float64
}

// Snapshot reads the current value of every counter.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Added:          readCounter(s.Added),
		Retried:        readCounter(s.Retried),
		Dropped:        readCounter(s.Dropped),
		Exceptions:     readCounter(s.Exceptions),
		NotFound:       readCounter(s.NotFound),
		MovedToPublic:  readCounter(s.MovedToPublic),
		DumpedToSecret: readCounter(s.DumpedToSecret),
		Archived:       readCounter(s.Archived),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
