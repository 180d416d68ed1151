package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by instrumented pools.
// Series are labelled with the pool name. A nil *Metrics records nothing.
type Metrics struct {
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksPanicked  *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec
	BusyWorkers    *prometheus.GaugeVec
	TaskDuration   *prometheus.HistogramVec
}

// NewMetrics creates the pool collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"pool"}

	return &Metrics{
		TasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}, labels),
		TasksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks rejected because the pool was stopped",
		}, labels),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that returned normally",
		}, labels),
		TasksPanicked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_panicked_total",
			Help:      "Total number of task panics recovered by the pool",
		}, labels),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks waiting for a worker",
		}, labels),
		BusyWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a task",
		}, labels),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
}

func (m *Metrics) taskSubmitted(pool string, depth int) {
	if m == nil {
		return
	}
	m.TasksSubmitted.WithLabelValues(pool).Inc()
	m.QueueDepth.WithLabelValues(pool).Set(float64(depth))
}

func (m *Metrics) taskRejected(pool string) {
	if m == nil {
		return
	}
	m.TasksRejected.WithLabelValues(pool).Inc()
}

func (m *Metrics) setQueueDepth(pool string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(pool).Set(float64(depth))
}

func (m *Metrics) taskStarted(pool string) {
	if m == nil {
		return
	}
	m.BusyWorkers.WithLabelValues(pool).Inc()
}

func (m *Metrics) taskFinished(pool string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BusyWorkers.WithLabelValues(pool).Dec()
	m.TaskDuration.WithLabelValues(pool).Observe(elapsed.Seconds())
}

func (m *Metrics) taskCompleted(pool string) {
	if m == nil {
		return
	}
	m.TasksCompleted.WithLabelValues(pool).Inc()
}

func (m *Metrics) taskPanicked(pool string) {
	if m == nil {
		return
	}
	m.TasksPanicked.WithLabelValues(pool).Inc()
}
