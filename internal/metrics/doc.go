// Package metrics exposes Prometheus collectors for pipeline activity: jobs
// by outcome, agent runs by outcome and latency, validation verdicts and
// protocol messages by action.
//
// Collectors live on a private registry so tests and repeated CLI runs never
// collide with the global default registry. WriteTextfile dumps the registry
// in the node-exporter textfile format.
package metrics
