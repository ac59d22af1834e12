// Package agent defines the processing-unit contract the orchestrator drives
// and the built-in agents that satisfy it.
//
// Every agent is built by a Factory from a single Config (job id, file
// reference and, for metadata agents, the file kind) and exposes one
// operation, Process, which returns either named metrics or an explicit
// failure cause. A returned error signals a crash; the orchestrator converts
// it into a failure result without aborting the job.
//
// The built-in agents probe the source with ffprobe and report what they find.
// The media algorithms themselves (enhancement, audio cleanup, frame
// extraction, summarization) live outside this module and plug in through
// the same Factory contract.
package agent
