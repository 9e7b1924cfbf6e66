package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished DAG runs by terminal state
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpipe_dag_runs_total",
			Help: "Total number of finished DAG runs",
		},
		[]string{"dag", "state"},
	)

	// ActiveRuns tracks runs currently holding a run slot
	ActiveRuns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpipe_dag_active_runs",
			Help: "Number of DAG runs in progress",
		},
		[]string{"dag"},
	)

	// RejectedRuns counts runs refused by the max_active_runs cap
	RejectedRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpipe_dag_runs_rejected_total",
			Help: "Total number of DAG runs rejected because max_active_runs was reached",
		},
		[]string{"dag"},
	)

	// TaskAttempts counts task attempts by outcome
	TaskAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpipe_task_attempts_total",
			Help: "Total number of task attempts",
		},
		[]string{"dag", "task", "outcome"},
	)

	// TaskDuration tracks wall time of a task across all of its attempts
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adpipe_task_duration_seconds",
			Help:    "Task duration in seconds including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dag", "task"},
	)
)
