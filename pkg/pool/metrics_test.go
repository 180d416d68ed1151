package pool

import (
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsPoolActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	var panics atomic.Int32
	p, err := New(2,
		WithName("mappers"),
		WithMetrics(metrics),
		WithPanicHandler(func(int, any) { panics.Add(1) }),
	)
	require.NoError(t, err)

	for range 20 {
		require.NoError(t, p.Submit(func(int) {}))
	}
	require.NoError(t, p.Submit(func(int) { panic("boom") }))
	p.Shutdown()
	require.ErrorIs(t, p.Submit(func(int) {}), ErrPoolStopped)

	require.Equal(t, float64(21), testutil.ToFloat64(metrics.TasksSubmitted.WithLabelValues("mappers")))
	require.Equal(t, float64(20), testutil.ToFloat64(metrics.TasksCompleted.WithLabelValues("mappers")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksPanicked.WithLabelValues("mappers")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.TasksRejected.WithLabelValues("mappers")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("mappers")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.BusyWorkers.WithLabelValues("mappers")))
	require.Equal(t, int32(1), panics.Load())

	count, err := testutil.GatherAndCount(reg, "test_task_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.taskSubmitted("p", 1)
	m.taskRejected("p")
	m.setQueueDepth("p", 0)
	m.taskStarted("p")
	m.taskFinished("p", 0)
	m.taskCompleted("p")
	m.taskPanicked("p")
}
