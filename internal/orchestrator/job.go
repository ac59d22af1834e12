package orchestrator

import (
	"slices"
	"time"

	"mediasuite/internal/agent"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// AgentResult is one entry of a job's ordered results.
type AgentResult struct {
	AgentID string       `json:"agent_id"`
	Result  agent.Result `json:"result"`
}

// Job is one pipeline run over a single input.
type Job struct {
	ID            string        `json:"id"`
	FileReference string        `json:"file_reference"`
	FileKind      string        `json:"file_kind"`
	Status        Status        `json:"status"`
	Results       []AgentResult `json:"results"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   time.Time     `json:"completed_at,omitzero"`
	// Error describes the setup failure when Status is StatusError.
	Error string `json:"error,omitempty"`
}

// Result returns the recorded result for agentID.
func (j Job) Result(agentID string) (agent.Result, bool) {
	for _, entry := range j.Results {
		if entry.AgentID == agentID {
			return entry.Result, true
		}
	}
	return agent.Result{}, false
}

// AgentIDs returns the ids of recorded results in insertion order.
func (j Job) AgentIDs() []string {
	ids := make([]string, 0, len(j.Results))
	for _, entry := range j.Results {
		ids = append(ids, entry.AgentID)
	}
	return ids
}

// Failures counts recorded results that carry an error.
func (j Job) Failures() int {
	n := 0
	for _, entry := range j.Results {
		if entry.Result.Failed() {
			n++
		}
	}
	return n
}

// Elapsed returns the run time, measured to now while still processing.
func (j Job) Elapsed(now time.Time) time.Duration {
	if !j.CompletedAt.IsZero() {
		return j.CompletedAt.Sub(j.CreatedAt)
	}
	return now.Sub(j.CreatedAt)
}

// Clone returns a deep copy.
func (j Job) Clone() Job {
	out := j
	out.Results = slices.Clone(j.Results)
	for i := range out.Results {
		out.Results[i].Result = out.Results[i].Result.Clone()
	}
	return out
}
