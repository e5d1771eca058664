package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"lead-responder/internal/domain"
)

// TickMetrics exposes counters/histograms for polling ticks.
type TickMetrics struct {
	ticksTotal       *prometheus.CounterVec
	newMessagesTotal prometheus.Counter
	repliesTotal     prometheus.Counter
	emptyCompletions prometheus.Counter
	tickDuration     prometheus.Histogram
	lastSuccess      prometheus.Gauge
}

func NewTickMetrics(reg prometheus.Registerer) *TickMetrics {
	m := &TickMetrics{
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Polling ticks by outcome",
		}, []string{"status", "reason"}),
		newMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "new_messages_total",
			Help:      "Conversations whose last-seen message advanced",
		}),
		repliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "replies_total",
			Help:      "Replies dispatched to leads",
		}),
		emptyCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "empty_completions_total",
			Help:      "Completions that returned no text and were not sent",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a polling tick",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lead_responder",
			Subsystem: "poller",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last tick that visited every conversation",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.ticksTotal, m.newMessagesTotal, m.repliesTotal, m.emptyCompletions, m.tickDuration, m.lastSuccess)
	return m
}

// ObserveTick records a finished tick. Skipped ticks only count toward
// ticks_total.
func (m *TickMetrics) ObserveTick(r domain.TickResult) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(string(r.Status), r.Reason).Inc()
	if r.Status == domain.TickSkipped {
		return
	}
	m.newMessagesTotal.Add(float64(r.NewMessages))
	m.repliesTotal.Add(float64(r.Replies))
	m.emptyCompletions.Add(float64(r.EmptyCompletions))
	m.tickDuration.Observe(r.Duration().Seconds())
	if r.Status == domain.TickSuccess && !r.FinishedAt.IsZero() {
		m.lastSuccess.Set(float64(r.FinishedAt.Unix()))
	}
}
