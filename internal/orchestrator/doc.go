// Package orchestrator runs a file through every registered agent and
// records what each one produced.
//
// ProcessFile creates a Job, then for each agent in registry order builds the
// agent, sends a "process" request envelope, invokes the agent under a
// per-agent timeout, validates the result, records it on the Job and sends a
// correlated "process_complete" response. After the last agent it marks the
// Job completed and broadcasts "pipeline_complete".
//
// Failures are isolated per agent. An agent that cannot be built is skipped
// and leaves no entry. An agent that errors, panics or times out gets a
// synthesized "<agent> crashed: <cause>" result. Only setup problems (no
// agents, no input) move a Job to the error state.
//
// With more than one worker, agents run on a bounded pool but results and
// response envelopes are still committed in registry order. Cancelling a job
// stops further dispatch; agents that had not finished leave no entry and the
// Job ends cancelled.
//
// The orchestrator owns Job mutation and the protocol owns the message log.
// Callers only ever receive copies.
package orchestrator
