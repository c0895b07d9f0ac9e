/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for argv fuzzer telemetry.
The logger reporter prints trial and session events; the Prometheus reporter counts
them and can export the registry to a node_exporter textfile.
*/

package core

import (
	"fmt"
	"time"

	"github.com/kleascm/argv-fuzzer/pkg/artifact"
	"github.com/kleascm/argv-fuzzer/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Reporter defines the hooks the engine calls while running.
type Reporter interface {
	// OnTrialExecuted is called after each trial is classified.
	OnTrialExecuted(trial int, input *GeneratedInput, outcome Outcome, duration time.Duration)
	// OnFailureRecorded is called once the failing case is on disk.
	OnFailureRecorded(rec *artifact.Record)
	// OnRunFinished is called when the loop ends, successfully or not.
	OnRunFinished(report *RunReport)
}

// LoggerReporter logs trial and session events.
type LoggerReporter struct {
	logger *logging.Logger
}

// NewLoggerReporter creates a new LoggerReporter.
func NewLoggerReporter(logger *logging.Logger) *LoggerReporter {
	return &LoggerReporter{logger: logger}
}

// OnTrialExecuted logs every trial at debug level and failures as warnings.
func (r *LoggerReporter) OnTrialExecuted(trial int, input *GeneratedInput, outcome Outcome, duration time.Duration) {
	r.logger.LogTrial(trial, outcome.Kind.String(), duration, logrus.Fields{
		"stdin_bytes": len(input.Stdin),
		"extra_args":  len(input.Args),
	})

	if !outcome.Failed() {
		return
	}
	fields := logrus.Fields{}
	if outcome.Kind == OutcomeFailedWithCode {
		fields["exit_code"] = outcome.Code
	}
	if outcome.Signal != "" {
		fields["signal"] = outcome.Signal
	}
	r.logger.LogFailure(trial, outcome.Message(), fields)
}

// OnFailureRecorded logs where the failing case was written.
func (r *LoggerReporter) OnFailureRecorded(rec *artifact.Record) {
	r.logger.LogArtifact(rec.Suffix, rec.InputPath, rec.ArgsPath, logrus.Fields{
		"stdin_bytes": len(rec.Stdin),
		"args":        len(rec.Args),
	})
}

// OnRunFinished logs the session summary.
func (r *LoggerReporter) OnRunFinished(report *RunReport) {
	fields := logrus.Fields{
		"session_id": report.SessionID,
		"seed":       report.Seed,
		"state":      report.State.String(),
	}
	switch report.State {
	case StateSucceeded:
		r.logger.LogSummary("Could not produce a failing state", report.Trials, report.Duration, fields)
	case StateFoundFailure:
		r.logger.LogSummary("Session found a failing case", report.Trials, report.Duration, fields)
	default:
		r.logger.LogSummary("Session aborted", report.Trials, report.Duration, fields)
	}
}

// PrometheusReporter counts trials and outcomes in its own registry.
type PrometheusReporter struct {
	registry      *prometheus.Registry
	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
	stdinBytes    prometheus.Histogram
	failures      prometheus.Counter
	lastRun       *prometheus.GaugeVec
}

// NewPrometheusReporter creates a PrometheusReporter with a fresh registry.
func NewPrometheusReporter() *PrometheusReporter {
	r := &PrometheusReporter{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "argvfuzz_trials_total",
				Help: "Trials executed, by outcome.",
			},
			[]string{"outcome"},
		),
		trialDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "argvfuzz_trial_duration_seconds",
				Help:    "Wall time of one trial, spawn to exit.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		stdinBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "argvfuzz_stdin_bytes",
				Help:    "Size of the generated stdin payload.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "argvfuzz_failures_recorded_total",
				Help: "Failing cases written to disk.",
			},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "argvfuzz_last_run_info",
				Help: "Trials performed by the last run, labelled with its final state.",
			},
			[]string{"state"},
		),
	}

	r.registry.MustRegister(r.trials, r.trialDuration, r.stdinBytes, r.failures, r.lastRun)
	for _, kind := range []OutcomeKind{OutcomePassed, OutcomeFailedWithCode, OutcomeFailedBySignal} {
		r.trials.WithLabelValues(kind.String())
	}
	return r
}

// Registry exposes the metrics registry.
func (r *PrometheusReporter) Registry() *prometheus.Registry { return r.registry }

// OnTrialExecuted counts the trial.
func (r *PrometheusReporter) OnTrialExecuted(trial int, input *GeneratedInput, outcome Outcome, duration time.Duration) {
	r.trials.WithLabelValues(outcome.Kind.String()).Inc()
	r.trialDuration.Observe(duration.Seconds())
	r.stdinBytes.Observe(float64(len(input.Stdin)))
}

// OnFailureRecorded counts the artifact.
func (r *PrometheusReporter) OnFailureRecorded(rec *artifact.Record) {
	r.failures.Inc()
}

// OnRunFinished records the run's final state.
func (r *PrometheusReporter) OnRunFinished(report *RunReport) {
	r.lastRun.Reset()
	r.lastRun.WithLabelValues(report.State.String()).Set(float64(report.Trials))
}

// WriteTextfile writes the registry in the text exposition format.
func (r *PrometheusReporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
