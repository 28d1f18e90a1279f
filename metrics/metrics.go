// Package metrics defines the timers and counters the cache emits per query,
// and a Prometheus backed registry for them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer and counter names. Every event is tagged with the query id.
const (
	Query    = "query"
	Backend  = "backend"
	CacheGet = "cache.get"
	CachePut = "cache.put"
)

// Result tags of the CacheGet counter.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

type Timer interface {
	Observe(d time.Duration)
}

type Counter interface {
	Inc()
}

// Registry hands out timers and counters. Implementations must be safe for
// concurrent use and may return the same handle for the same arguments.
type Registry interface {
	Timer(name, queryID string) Timer
	Counter(name, queryID, result string) Counter
}

// Nop returns a registry whose handles discard every event.
func Nop() Registry {
	return nop{}
}

type nop struct{}

func (nop) Timer(string, string) Timer             { return nop{} }
func (nop) Counter(string, string, string) Counter { return nop{} }
func (nop) Observe(time.Duration)                  {}
func (nop) Inc()                                   {}

// Prometheus exports timers as one summary and counters as one counter,
// both labelled by metric name and query id.
type Prometheus struct {
	latency *prometheus.SummaryVec
	events  *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg. A nil
// reg means prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		latency: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Name:       "latency_seconds",
				Help:       "Query, backend and cache operation latency.",
				Objectives: map[float64]float64{0.9: 0.01, 0.99: 0.001},
			},
			[]string{"metric", "query_id"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Cache lookups by result.",
			},
			[]string{"metric", "query_id", "result"},
		),
	}
	for _, c := range []prometheus.Collector{p.latency, p.events} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Timer(name, queryID string) Timer {
	return seconds{p.latency.WithLabelValues(name, queryID)}
}

func (p *Prometheus) Counter(name, queryID, result string) Counter {
	return p.events.WithLabelValues(name, queryID, result)
}

type seconds struct {
	o prometheus.Observer
}

func (s seconds) Observe(d time.Duration) {
	s.o.Observe(d.Seconds())
}
