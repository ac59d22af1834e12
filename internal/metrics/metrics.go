package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediasuite"

// Agent outcome labels.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCrashed   = "crashed"
	OutcomeSkipped   = "skipped"
)

// Metrics groups the pipeline collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted    prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	jobsInFlight   prometheus.Gauge
	agentRuns      *prometheus.CounterVec
	agentLatencyMs *prometheus.HistogramVec
	validations    *prometheus.CounterVec
	messages       *prometheus.CounterVec
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Jobs accepted by the orchestrator.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs by terminal status (completed/error/cancelled).",
		}, []string{"status"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently in the processing state.",
		}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent invocations by outcome (succeeded/failed/crashed/skipped).",
		}, []string{"agent", "outcome"}),
		agentLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_latency_ms",
			Help:      "Agent invocation latency distribution in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000, 300000},
		}, []string{"agent"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Output validation verdicts per agent.",
		}, []string{"agent", "verified"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Protocol envelopes sent by action.",
		}, []string{"action"}),
	}
	m.registry.MustRegister(
		m.jobsStarted, m.jobsFinished, m.jobsInFlight,
		m.agentRuns, m.agentLatencyMs, m.validations, m.messages,
	)
	return m
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// JobStarted records a job entering processing.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsStarted.Inc()
	m.jobsInFlight.Inc()
}

// JobFinished records a job reaching a terminal status.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
	m.jobsFinished.WithLabelValues(norm(status)).Inc()
}

// AgentFinished records one agent invocation.
func (m *Metrics) AgentFinished(agentID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(norm(agentID), norm(outcome)).Inc()
	if outcome != OutcomeSkipped {
		m.agentLatencyMs.WithLabelValues(norm(agentID)).Observe(float64(elapsed.Milliseconds()))
	}
}

// Validated records a validation verdict.
func (m *Metrics) Validated(agentID string, ok bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(norm(agentID), strconv.FormatBool(ok)).Inc()
}

// MessageSent records one sent envelope.
func (m *Metrics) MessageSent(action string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(norm(action)).Inc()
}

// WriteTextfile writes the gathered metrics to path in the Prometheus text
// format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
