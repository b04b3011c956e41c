package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/pkg/llm"
)

const namespace = "cognitive"

// Collector turns completion client events into Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	cost     *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// New creates a collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total completion client events by kind",
			},
			[]string{"kind"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generate_duration_seconds",
				Help:      "Wall-clock duration of successful generations",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"integration", "model"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens consumed by successful generations",
			},
			[]string{"integration", "model", "type"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_usd_total",
				Help:      "Cost in USD of successful generations",
			},
			[]string{"integration", "model"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failed_attempts_total",
				Help:      "Failed attempts by the action taken; model is best, fast or concrete",
			},
			[]string{"model", "action"},
		),
	}
}

// Attach subscribes the collector to every event kind of c and returns a
// function that detaches it.
func (m *Collector) Attach(c *cognitive.Client) func() {
	unsubs := make([]func(), 0, len(cognitive.EventKinds))
	for _, kind := range cognitive.EventKinds {
		unsubs = append(unsubs, c.Subscribe(kind, m.Observe))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Observe records one event.
func (m *Collector) Observe(ev cognitive.Event) {
	m.events.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case cognitive.EventResponse:
		if ev.Response == nil {
			return
		}
		meta := ev.Response.Meta
		integration, model := meta.Model.Integration, meta.Model.Model
		m.latency.WithLabelValues(integration, model).Observe(meta.Latency.Seconds())
		m.tokens.WithLabelValues(integration, model, "input").Add(float64(meta.Tokens.Input))
		m.tokens.WithLabelValues(integration, model, "output").Add(float64(meta.Tokens.Output))
		m.cost.WithLabelValues(integration, model).Add(meta.Cost.Input + meta.Cost.Output)
	case cognitive.EventRetry, cognitive.EventFallback, cognitive.EventError, cognitive.EventAborted:
		model := llm.RefBest
		if ev.Request != nil && ev.Request.Input.Model != "" {
			model = llm.Ref(ev.Request.Input.Model)
		}
		m.failures.WithLabelValues(requestedLabel(model), string(ev.Kind)).Inc()
	}
}

// requestedLabel keeps the failures label bounded: requested refs come from
// callers and can be anything.
func requestedLabel(ref llm.Ref) string {
	if ref.IsSentinel() {
		return string(ref)
	}
	return "concrete"
}

// Handler serves the collector's registry in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}
