package metrics

import (
	coremetrics "github.com/mindcare/guardian/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records alert lifecycle events in Prometheus metrics.
type PromSink struct {
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	candidates    prometheus.Histogram
	positions     prometheus.Counter
}

// NewPromSink registers alert metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_transitions_total",
		Help: "Total number of alert status transitions",
	}, []string{"status", "reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_events_total",
		Help: "Total number of notification state changes",
	}, []string{"channel", "state"})
	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_candidates",
		Help:    "Eligible caregivers found per ranking pass",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
	})
	positions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "position_updates_total",
		Help: "Accepted subject position updates",
	})

	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(notifications); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			notifications = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(candidates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			candidates = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(positions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			positions = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		transitions:   transitions,
		notifications: notifications,
		candidates:    candidates,
		positions:     positions,
	}, nil
}

// RecordAlertTransition increments the counter for the transition.
func (s *PromSink) RecordAlertTransition(ev coremetrics.AlertTransitionEvent) error {
	s.transitions.WithLabelValues(string(ev.Status), ev.Reason).Inc()
	return nil
}

// RecordNotification increments the per-channel notification counter.
func (s *PromSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	s.notifications.WithLabelValues(string(ev.Channel), string(ev.State)).Inc()
	return nil
}

// RecordCandidateSet observes the candidate count histogram.
func (s *PromSink) RecordCandidateSet(ev coremetrics.CandidateSetEvent) error {
	s.candidates.Observe(float64(ev.Assigned + ev.Nearby))
	return nil
}

// RecordPosition counts accepted position updates.
func (s *PromSink) RecordPosition(coremetrics.PositionEvent) error {
	s.positions.Inc()
	return nil
}
