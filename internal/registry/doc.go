// Package registry holds the agents available to the orchestrator and the
// order they run in.
//
// Each entry pairs an immutable Descriptor (id, kind, declared capabilities)
// with the Factory that builds the agent for a job. Insertion order is the
// pipeline order: List returns ids in the order they were first registered,
// and re-registering an id replaces its entry without moving it. Unknown or
// malformed entries are rejected at registration time so the orchestrator
// never discovers a bad id mid-job. The orchestrator seals the registry when
// it takes ownership; later registrations fail with ErrSealed.
package registry
