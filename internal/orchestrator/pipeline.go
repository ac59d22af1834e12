package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediasuite/internal/agent"
	"mediasuite/internal/logging"
	"mediasuite/internal/metrics"
	"mediasuite/internal/protocol"
	"mediasuite/internal/services"
)

// task tracks one agent through request, execution, validation and commit.
type task struct {
	agentID string
	unit    agent.Agent
	request protocol.Envelope
	result  agent.Result
	outcome string
	elapsed time.Duration
	done    bool
}

// ProcessFile runs fileRef through every registered agent and returns the job
// id. The job id is returned even when an error is: setup failures leave the
// job in StatusError, cancellation leaves it in StatusCancelled.
func (o *Orchestrator) ProcessFile(ctx context.Context, fileRef, fileKind string) (string, error) {
	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	job := o.createJob(jobID, strings.TrimSpace(fileRef), strings.TrimSpace(fileKind), cancel)
	defer o.releaseJob(jobID)

	jobCtx = services.WithJobID(jobCtx, jobID)
	logger := logging.WithContext(jobCtx, o.logger)
	o.metrics.JobStarted()
	o.persist(jobCtx, job)

	ids := o.registry.List()
	logger.Info("job started",
		logging.EventType("job_start"),
		logging.String("file_reference", job.FileReference),
		logging.String("file_kind", job.FileKind),
		logging.Int("agents", len(ids)),
		logging.Int("workers", o.workers),
	)

	var setupProblem string
	switch {
	case job.FileReference == "":
		setupProblem = "file reference is required"
	case len(ids) == 0:
		setupProblem = "no agents registered"
	}
	if setupProblem != "" {
		err := setupError(setupProblem)
		final := o.finish(jobID, StatusError, err.Error())
		o.metrics.JobFinished(string(StatusError))
		o.persist(jobCtx, final)
		logging.ErrorWithContext(logger, "job setup failed", "job_error",
			logging.Error(err),
			logging.ErrorHint("register at least one agent and pass a file reference"),
		)
		return jobID, err
	}

	var interrupted bool
	if o.workers > 1 && len(ids) > 1 {
		interrupted = o.runPool(jobCtx, job, ids)
	} else {
		interrupted = o.runSequential(jobCtx, job, ids)
	}

	status, action := StatusCompleted, protocol.ActionPipelineComplete
	if interrupted {
		status, action = StatusCancelled, protocol.ActionPipelineCancelled
	}
	final := o.finish(jobID, status, "")
	o.metrics.JobFinished(string(status))
	o.persist(jobCtx, final)

	elapsed := final.CompletedAt.Sub(final.CreatedAt)
	notice := o.protocol.CreateMessage(ParticipantID, protocol.BroadcastID, action, map[string]any{
		"job_id":           jobID,
		"elapsed_seconds":  elapsed.Seconds(),
		"agents_completed": len(final.Results),
	})
	o.send(context.WithoutCancel(jobCtx), jobID, notice)

	if interrupted {
		cause := context.Cause(jobCtx)
		logger.Info("job cancelled",
			logging.EventType("job_cancelled"),
			logging.Int("agents_completed", len(final.Results)),
			logging.Duration("elapsed", elapsed),
			logging.Error(cause),
		)
		if errors.Is(cause, ErrCancelled) {
			return jobID, ErrCancelled
		}
		return jobID, fmt.Errorf("%w: %w", ErrCancelled, cause)
	}

	logger.Info("job completed",
		logging.EventType("job_complete"),
		logging.Int("agents_completed", len(final.Results)),
		logging.Int("agent_failures", final.Failures()),
		logging.Duration("elapsed", elapsed),
	)
	return jobID, nil
}

// runSequential runs agents strictly one after another. It reports whether
// cancellation stopped the pipeline early.
func (o *Orchestrator) runSequential(ctx context.Context, job Job, ids []string) bool {
	for _, id := range ids {
		if ctx.Err() != nil {
			return true
		}
		t, ok := o.prepare(ctx, job, id)
		if !ok {
			continue
		}
		o.execute(ctx, t)
		if !t.done {
			return true
		}
		o.commit(ctx, job, t)
	}
	return false
}

// runPool sends every request in registry order, runs the agents on a
// bounded pool and commits finished results in registry order after the
// join.
func (o *Orchestrator) runPool(ctx context.Context, job Job, ids []string) bool {
	interrupted := false
	tasks := make([]*task, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		if t, ok := o.prepare(ctx, job, id); ok {
			tasks = append(tasks, t)
		}
	}

	queue := make(chan *task)
	var wg sync.WaitGroup
	for range min(o.workers, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				if ctx.Err() != nil {
					continue
				}
				o.execute(ctx, t)
			}
		}()
	}
feed:
	for _, t := range tasks {
		select {
		case queue <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for _, t := range tasks {
		if !t.done {
			interrupted = true
			continue
		}
		o.commit(ctx, job, t)
	}
	return interrupted
}

// prepare builds the agent and sends its request. Agents that cannot be
// resolved or built are skipped and leave no result entry.
func (o *Orchestrator) prepare(ctx context.Context, job Job, agentID string) (*task, bool) {
	ctx = services.WithAgentID(ctx, agentID)
	logger := logging.WithContext(ctx, o.logger)

	desc, found := o.registry.Get(agentID)
	factory, hasFactory := o.registry.Factory(agentID)
	var unit agent.Agent
	err := errors.New("agent is not registered")
	if found && hasFactory {
		cfg := agent.Config{JobID: job.ID, FileReference: job.FileReference}
		if desc.Kind == agent.KindMetadata {
			cfg.FileKind = job.FileKind
		}
		unit, err = build(factory, cfg)
	}
	if err != nil {
		wrapped := services.Wrap(services.ErrAgentConstruction, "orchestrator", "construct", agentID, err)
		logging.WarnWithContext(logger, "agent skipped", "agent_skipped",
			logging.Error(wrapped),
			logging.Impact("job continues without this agent's result"),
			logging.ErrorHint("check the agent factory and its inputs"),
		)
		o.metrics.AgentFinished(agentID, metrics.OutcomeSkipped, 0)
		return nil, false
	}

	request := o.protocol.CreateMessage(ParticipantID, agentID, protocol.ActionProcess, map[string]any{
		"job_id":         job.ID,
		"file_reference": job.FileReference,
		"file_kind":      job.FileKind,
		"dependencies":   []string{},
		"sent_at":        unixSeconds(o.now()),
	})
	o.send(ctx, job.ID, request)
	return &task{agentID: agentID, unit: unit, request: request}, true
}

func build(factory agent.Factory, cfg agent.Config) (unit agent.Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			unit, err = nil, fmt.Errorf("factory panic: %v", r)
		}
	}()
	unit, err = factory(cfg)
	if err == nil && unit == nil {
		err = errors.New("factory returned no agent")
	}
	return unit, err
}

// execute invokes the agent, converting crashes into failure results, and
// validates the outcome. t.done stays false only when the job was cancelled
// before the agent finished.
func (o *Orchestrator) execute(ctx context.Context, t *task) {
	agentCtx := services.WithRequestID(services.WithAgentID(ctx, t.agentID), t.request.ID())
	logger := logging.WithContext(agentCtx, o.logger)
	started := time.Now()

	var result agent.Result
	attempts := o.retries + 1
	for attempt := 1; ; attempt++ {
		res, err := o.invoke(agentCtx, t.unit)
		if err == nil {
			result = res
			t.outcome = metrics.OutcomeSucceeded
			if res.Failed() {
				t.outcome = metrics.OutcomeFailed
			}
			break
		}
		if ctx.Err() != nil {
			logger.Info("agent interrupted by cancellation",
				logging.EventType("agent_interrupted"),
				logging.Int("attempt", attempt),
			)
			return
		}
		if attempt < attempts && services.Retryable(err) {
			logging.WarnWithContext(logger, "agent crashed; retrying", "agent_retry",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", attempts),
				logging.Error(err),
				logging.Impact("agent will be invoked again"),
			)
			continue
		}
		wrapped := services.Wrap(services.ErrAgentProcessing, "orchestrator", "invoke", t.agentID, err)
		logging.WarnWithContext(logger, "agent crashed", "agent_crashed",
			logging.Int("attempts", attempt),
			logging.Error(wrapped),
			logging.Impact("error result recorded; job continues"),
		)
		result = agent.Failure(fmt.Sprintf("%s crashed: %v", t.agentID, err))
		t.outcome = metrics.OutcomeCrashed
		break
	}
	t.elapsed = time.Since(started)

	verified := o.validator.Validate(agentCtx, t.agentID, result)
	t.result = result.WithValidation(verified)
	t.done = true
	o.metrics.Validated(t.agentID, verified)
	o.metrics.AgentFinished(t.agentID, t.outcome, t.elapsed)
}

type invocation struct {
	result agent.Result
	err    error
}

// invoke runs Process under the per-agent timeout. The call is abandoned,
// not awaited, when the deadline passes.
func (o *Orchestrator) invoke(ctx context.Context, unit agent.Agent) (agent.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := unit.Process(callCtx)
		done <- invocation{result: res, err: err}
	}()

	timedOut := func() error {
		return fmt.Errorf("%w after %s", services.ErrTimeout, o.agentTimeout)
	}
	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return agent.Result{}, timedOut()
		}
		return out.result, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return agent.Result{}, context.Cause(ctx)
		}
		return agent.Result{}, timedOut()
	}
}

// commit records the result on the job and sends the correlated response.
func (o *Orchestrator) commit(ctx context.Context, job Job, t *task) {
	ctx = context.WithoutCancel(services.WithAgentID(ctx, t.agentID))
	updated := o.appendResult(job.ID, t.agentID, t.result)
	o.persist(ctx, updated)

	response := o.protocol.CreateMessage(t.agentID, ParticipantID, protocol.ActionProcessComplete, map[string]any{
		"job_id":          job.ID,
		"results":         t.result.Map(),
		"elapsed_seconds": o.now().Sub(job.CreatedAt).Seconds(),
	}, protocol.WithCorrelationID(t.request.ID()))
	o.send(ctx, job.ID, response)

	logging.WithContext(ctx, o.logger).Info("agent completed",
		logging.EventType("agent_complete"),
		logging.String("outcome", t.outcome),
		logging.String("validation", t.result.Validation),
		logging.Duration("duration", t.elapsed),
	)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
