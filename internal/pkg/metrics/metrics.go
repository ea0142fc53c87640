package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// StageTranscription label value
	StageTranscription = "transcription"
	// StageDiarization label value
	StageDiarization = "diarization"
	// StageAnalysis label value
	StageAnalysis = "analysis"

	// OutcomeOK label value
	OutcomeOK = "ok"
	// OutcomeFail label value
	OutcomeFail = "fail"
)

// No recording IDs in labels.
var (
	// StageTotal counts collaborator calls by stage and outcome
	StageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetscribe_stage_total",
		Help: "Total number of pipeline stage calls, by stage and outcome.",
	}, []string{"stage", "outcome"})

	// StageDuration observes collaborator call durations
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meetscribe_stage_duration_seconds",
		Help:    "Duration of pipeline stage calls, by stage.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	// AlignmentTotal counts alignment results by mode
	AlignmentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetscribe_alignment_total",
		Help: "Total number of transcript alignments, by mode.",
	}, []string{"mode"})

	// PipelineTotal counts finished pipelines by final status
	PipelineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meetscribe_pipeline_total",
		Help: "Total number of finished pipelines, by final status.",
	}, []string{"status"})
)

// ObserveStage records one stage call
func ObserveStage(stage string, started time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFail
	}
	StageTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// RecordAlignment counts an alignment result
func RecordAlignment(mode string) {
	AlignmentTotal.WithLabelValues(mode).Inc()
}

// RecordPipeline counts a finished pipeline
func RecordPipeline(status string) {
	PipelineTotal.WithLabelValues(status).Inc()
}
