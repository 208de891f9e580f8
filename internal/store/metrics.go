package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "knit"

const storeSubsystem = "store"

// Metrics counts store activity. A nil *Metrics records nothing.
type Metrics struct {
	// Loads counts mapping files read from disk.
	Loads prometheus.Counter
	// CacheHits counts GetOrCreate calls served from the cache.
	CacheHits prometheus.Counter
	// Writes counts mapping files written.
	Writes prometheus.Counter
	// Deletes counts roots removed because nothing in them was worth keeping.
	Deletes prometheus.Counter
	// FormatErrors counts malformed mapping files.
	FormatErrors prometheus.Counter
}

// NewMetrics creates store metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: storeSubsystem,
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		Loads:        counter("loads_total", "Mapping files read from disk"),
		CacheHits:    counter("cache_hits_total", "Root lookups served from the cache"),
		Writes:       counter("writes_total", "Mapping files written"),
		Deletes:      counter("deletes_total", "Mapping roots removed after simplification"),
		FormatErrors: counter("format_errors_total", "Malformed mapping files replaced by identity mappings"),
	}
}

func (m *Metrics) loaded() {
	if m != nil {
		m.Loads.Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) written() {
	if m != nil {
		m.Writes.Inc()
	}
}

func (m *Metrics) deleted() {
	if m != nil {
		m.Deletes.Inc()
	}
}

func (m *Metrics) formatError() {
	if m != nil {
		m.FormatErrors.Inc()
	}
}
