package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"mediasuite/internal/agent"
	"mediasuite/internal/logging"
	"mediasuite/internal/metrics"
	"mediasuite/internal/protocol"
	"mediasuite/internal/registry"
	"mediasuite/internal/services"
)

// ParticipantID is the orchestrator's protocol identity.
const ParticipantID = "orchestrator"

const defaultAgentTimeout = 5 * time.Minute

// ErrCancelled is returned by ProcessFile when the job was cancelled.
var ErrCancelled = errors.New("job cancelled")

// Validator checks an agent result. Implementations must not panic.
type Validator interface {
	Validate(ctx context.Context, agentID string, result agent.Result) bool
}

// Recorder persists job state changes and sent envelopes.
type Recorder interface {
	SaveJob(ctx context.Context, job Job) error
	AppendMessage(ctx context.Context, jobID string, env protocol.Envelope) error
}

type permissive struct{}

func (permissive) Validate(_ context.Context, _ string, result agent.Result) bool {
	return !result.Failed()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithWorkers sets how many agents may run at once. 1 runs them strictly in
// sequence.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithAgentTimeout bounds each agent invocation.
func WithAgentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.agentTimeout = d
		}
	}
}

// WithRetries re-invokes crashed or timed-out agents up to n extra times.
func WithRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithMetrics records pipeline activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRecorder persists jobs and envelopes as they change.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithProtocol replaces the orchestrator's protocol participant.
func WithProtocol(p *protocol.Protocol) Option {
	return func(o *Orchestrator) { o.protocol = p }
}

// WithClock overrides the time source used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator owns job lifecycle and pipeline execution.
type Orchestrator struct {
	registry  *registry.Registry
	validator Validator
	protocol  *protocol.Protocol
	logger    *slog.Logger
	metrics   *metrics.Metrics
	recorder  Recorder
	now       func() time.Time

	workers      int
	agentTimeout time.Duration
	retries      int

	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string
	cancels map[string]context.CancelCauseFunc
}

// New constructs an orchestrator over reg and seals it. A nil validator
// accepts every result that did not fail.
func New(reg *registry.Registry, validator Validator, opts ...Option) *Orchestrator {
	if reg == nil {
		reg = registry.New()
	}
	if validator == nil {
		validator = permissive{}
	}
	o := &Orchestrator{
		registry:     reg,
		validator:    validator,
		now:          time.Now,
		workers:      1,
		agentTimeout: defaultAgentTimeout,
		jobs:         make(map[string]*Job),
		cancels:      make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "orchestrator")
	if o.protocol == nil {
		o.protocol = protocol.New(ParticipantID, protocol.WithLogger(o.logger))
	}
	reg.Seal()
	return o
}

// Registry returns the sealed registry driving the pipeline.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Protocol returns the orchestrator's protocol participant.
func (o *Orchestrator) Protocol() *protocol.Protocol { return o.protocol }

// Job returns a copy of the job with the given id.
func (o *Orchestrator) Job(id string) (Job, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	job, ok := o.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.Clone(), true
}

// Jobs returns copies of every job in creation order.
func (o *Orchestrator) Jobs() []Job {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Job, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.jobs[id].Clone())
	}
	return out
}

// Cancel stops a running job. It reports whether the job was running.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.RLock()
	cancel, ok := o.cancels[id]
	o.mu.RUnlock()
	if !ok {
		return false
	}
	cancel(ErrCancelled)
	return true
}

// Log returns the full message log in send order.
func (o *Orchestrator) Log() []protocol.Envelope {
	return o.protocol.Log()
}

// Messages returns the envelopes that belong to jobID, in send order.
func (o *Orchestrator) Messages(jobID string) []protocol.Envelope {
	log := o.protocol.Log()
	return slices.DeleteFunc(log, func(env protocol.Envelope) bool {
		return env.DataString("job_id") != jobID
	})
}

func (o *Orchestrator) createJob(id, fileRef, fileKind string, cancel context.CancelCauseFunc) Job {
	job := &Job{
		ID:            id,
		FileReference: fileRef,
		FileKind:      fileKind,
		Status:        StatusProcessing,
		CreatedAt:     o.now().UTC(),
	}
	o.mu.Lock()
	o.jobs[id] = job
	o.order = append(o.order, id)
	o.cancels[id] = cancel
	snapshot := job.Clone()
	o.mu.Unlock()
	return snapshot
}

func (o *Orchestrator) releaseJob(id string) {
	o.mu.Lock()
	delete(o.cancels, id)
	o.mu.Unlock()
}

// appendResult records one agent result and returns the updated job.
func (o *Orchestrator) appendResult(id, agentID string, result agent.Result) Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	job := o.jobs[id]
	job.Results = append(job.Results, AgentResult{AgentID: agentID, Result: result.Clone()})
	return job.Clone()
}

// finish moves a job to a terminal status and returns the updated job.
func (o *Orchestrator) finish(id string, status Status, message string) Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	job := o.jobs[id]
	job.Status = status
	job.CompletedAt = o.now().UTC()
	job.Error = message
	return job.Clone()
}

func (o *Orchestrator) persist(ctx context.Context, job Job) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to persist job", "job_persist_failed",
			logging.String("status", string(job.Status)),
			logging.Error(err),
			logging.Impact("job history may be incomplete"),
		)
	}
}

// send emits env through the protocol and mirrors it to metrics and the
// recorder.
func (o *Orchestrator) send(ctx context.Context, jobID string, env protocol.Envelope) {
	o.protocol.Send(ctx, env)
	o.metrics.MessageSent(env.Action())
	if o.recorder == nil {
		return
	}
	if err := o.recorder.AppendMessage(context.WithoutCancel(ctx), jobID, env); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to persist message", "message_persist_failed",
			logging.String(logging.FieldMessageID, env.ID()),
			logging.Action(env.Action()),
			logging.Error(err),
			logging.Impact("message history may be incomplete"),
		)
	}
}

func setupError(message string) error {
	return services.Wrap(services.ErrPipelineSetup, "orchestrator", "process_file", message, nil)
}
