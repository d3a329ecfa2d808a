package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics exposes counters/histograms for the reminder lifecycle.
type ReminderMetrics struct {
	scheduledTotal *prometheus.CounterVec
	sweepItems     *prometheus.CounterVec
	deliveryTotal  *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	responsesTotal *prometheus.CounterVec
	publishTotal   *prometheus.CounterVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		scheduledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "scheduled_total",
			Help:      "Reminders created by the scheduler",
		}, []string{"kind", "channel"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "sweep_items_total",
			Help:      "Due reminders processed by the sweep, by result",
		}, []string{"result", "kind"}),
		deliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "delivery_attempts_total",
			Help:      "Transport attempts per sub-channel",
		}, []string{"channel", "result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one due sweep",
			Buckets:   prometheus.DefBuckets,
		}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "responses_total",
			Help:      "Interpreted patient replies",
		}, []string{"action", "next_action"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "outcome_publish_total",
			Help:      "Outcome publications to staff sinks",
		}, []string{"sink", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.scheduledTotal, m.sweepItems, m.deliveryTotal, m.sweepDuration, m.responsesTotal, m.publishTotal)
	return m
}

func (m *ReminderMetrics) ObserveScheduled(kind, channel string) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(kind, channel).Inc()
}

// ObserveSweepItem records one due reminder; result is sent, retry, failed or skipped.
func (m *ReminderMetrics) ObserveSweepItem(result, kind string) {
	if m == nil {
		return
	}
	m.sweepItems.WithLabelValues(result, kind).Inc()
}

func (m *ReminderMetrics) ObserveDelivery(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.deliveryTotal.WithLabelValues(channel, result).Inc()
}

func (m *ReminderMetrics) ObserveSweepDuration(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}

func (m *ReminderMetrics) ObserveResponse(action, nextAction string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(action, nextAction).Inc()
}

func (m *ReminderMetrics) ObservePublish(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.publishTotal.WithLabelValues(sink, status).Inc()
}
