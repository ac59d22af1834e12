// Package preflight provides readiness checks for the filesystem paths and
// external binaries the pipeline depends on.
//
// The CLI runs RunAll before processing a file and halts when a required
// check fails, and the status command renders the same results. Probe-based
// checks are skipped when media probing is disabled.
package preflight
