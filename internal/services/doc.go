// Package services defines shared utilities consumed by the orchestrator,
// the protocol layer and the agents.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, agent IDs, message IDs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline's error taxonomy (construction, processing,
//     validation, dispatch, setup).
//
// Use these helpers when wiring new agent or pipeline logic so error handling
// and observability stay uniform across the system.
package services
