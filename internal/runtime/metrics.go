package runtime

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/unitcast/internal/runtime/feedback"
)

const metricsNamespace = "unitcast"

// Metrics reports dispatch, broadcast, feedback and connection activity of one
// network to Prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registerer prometheus.Registerer

	dispatchTotal      *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
	broadcastTotal     *prometheus.CounterVec
	feedbackSessions   *prometheus.CounterVec
	feedbackRespondent *prometheus.HistogramVec
	connectionEvents   *prometheus.CounterVec
	subscribed         *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors for channel. Collectors that
// are already registered with registerer are reused, so several networks on
// the same channel can share one registry.
func NewMetrics(registerer prometheus.Registerer, channel string) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"channel": channel}
	m := &Metrics{registerer: registerer}

	var err error
	if m.dispatchTotal, err = registerCounterVec(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "dispatch",
			Name:        "messages_total",
			Help:        "Inbound messages by dispatch outcome and payload type",
			ConstLabels: labels,
		},
		[]string{"outcome", "payload_type"},
	)); err != nil {
		return nil, err
	}

	if m.dispatchDuration, err = registerHistogramVec(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "dispatch",
			Name:        "duration_seconds",
			Help:        "Time spent decoding and handling one inbound message",
			ConstLabels: labels,
			Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"payload_type"},
	)); err != nil {
		return nil, err
	}

	if m.broadcastTotal, err = registerCounterVec(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "broadcast",
			Name:        "messages_total",
			Help:        "Outbound broadcasts by payload type and result",
			ConstLabels: labels,
		},
		[]string{"payload_type", "result"},
	)); err != nil {
		return nil, err
	}

	if m.feedbackSessions, err = registerCounterVec(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "feedback",
			Name:        "sessions_total",
			Help:        "Closed feedback sessions by final status",
			ConstLabels: labels,
		},
		[]string{"status"},
	)); err != nil {
		return nil, err
	}

	if m.feedbackRespondent, err = registerHistogramVec(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "feedback",
			Name:        "respondents",
			Help:        "Number of distinct respondents per closed feedback session",
			ConstLabels: labels,
			Buckets:     []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
		[]string{"status"},
	)); err != nil {
		return nil, err
	}

	if m.connectionEvents, err = registerCounterVec(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "connection",
			Name:        "events_total",
			Help:        "Subscription lifecycle events seen by the resilience loop",
			ConstLabels: labels,
		},
		[]string{"kind"},
	)); err != nil {
		return nil, err
	}

	if m.subscribed, err = registerGaugeVec(registerer, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "connection",
			Name:        "subscribed",
			Help:        "1 while the unit holds an active subscription",
			ConstLabels: labels,
		},
		[]string{"unit"},
	)); err != nil {
		return nil, err
	}

	return m, nil
}

func register(registerer prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, nil
	}
	return nil, err
}

func registerCounterVec(registerer prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	col, err := register(registerer, c)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.CounterVec), nil
}

func registerHistogramVec(registerer prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	col, err := register(registerer, h)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.HistogramVec), nil
}

func registerGaugeVec(registerer prometheus.Registerer, g *prometheus.GaugeVec) (*prometheus.GaugeVec, error) {
	col, err := register(registerer, g)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.GaugeVec), nil
}

// ObserveDispatch records the outcome of one inbound message.
func (m *Metrics) ObserveDispatch(typeID string, outcome Outcome, took time.Duration) {
	if m == nil {
		return
	}
	if typeID == "" {
		typeID = "unknown"
	}
	m.dispatchTotal.WithLabelValues(string(outcome), typeID).Inc()
	m.dispatchDuration.WithLabelValues(typeID).Observe(took.Seconds())
}

// ObserveBroadcast records one publish attempt.
func (m *Metrics) ObserveBroadcast(typeID string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.broadcastTotal.WithLabelValues(typeID, result).Inc()
}

// ObserveFeedback records a session that reached a terminal status. It is
// meant to be installed as the feedback engine observer.
func (m *Metrics) ObserveFeedback(r feedback.Result) {
	if m == nil {
		return
	}
	status := string(r.Status)
	m.feedbackSessions.WithLabelValues(status).Inc()
	m.feedbackRespondent.WithLabelValues(status).Observe(float64(len(r.Respondents)))
}

// ObserveConnection records a resilience loop event for unit.
func (m *Metrics) ObserveConnection(unit string, kind ConnectionEventKind) {
	if m == nil {
		return
	}
	m.connectionEvents.WithLabelValues(string(kind)).Inc()
	switch kind {
	case EventSubscribed:
		m.subscribed.WithLabelValues(unit).Set(1)
	case EventSubscriptionLost, EventReconnectFailed:
		m.subscribed.WithLabelValues(unit).Set(0)
	}
}
