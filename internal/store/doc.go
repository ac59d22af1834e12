// Package store persists orchestrator jobs, their ordered agent results and
// the protocol envelopes exchanged for them in SQLite.
//
// Store satisfies orchestrator.Recorder: the orchestrator saves a job
// snapshot whenever its status or results change and appends every envelope
// it sends. The CLI reads the same database to list jobs and export message
// history after the process that ran them has exited.
//
// Schema changes bump schemaVersion in schema.go; an older database is
// rejected with ErrSchemaMismatch and must be cleared.
package store
