package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks the wall time of each stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adpipe_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// StageErrors counts stage failures
	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adpipe_stage_errors_total",
			Help: "Total number of failed stage executions",
		},
		[]string{"stage"},
	)

	// ModelAccuracy is the test accuracy of the last evaluated model
	ModelAccuracy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpipe_model_accuracy",
			Help: "Accuracy of the last evaluated model on the test split",
		},
		[]string{"model_id"},
	)

	// ModelAUC is the ROC AUC of the last evaluated model
	ModelAUC = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpipe_model_auc",
			Help: "ROC AUC of the last evaluated model on the test split",
		},
		[]string{"model_id"},
	)

	// SupportVectors is the support vector count of the last trained model
	SupportVectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpipe_model_support_vectors",
			Help: "Number of support vectors kept by the last trained model",
		},
		[]string{"model_id"},
	)
)

// observe records the duration and outcome of one stage call.
func observe(stage string, seconds float64, err error) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		StageErrors.WithLabelValues(stage).Inc()
	}
}
