// Command mediasuite runs media files through the agent pipeline and
// inspects the recorded job history.
//
// Commands:
//   - process: run one file through every configured agent
//   - jobs: list, show and remove recorded jobs
//   - messages: export a job's protocol envelopes as JSON lines
//   - agents: show the configured pipeline
//   - status: preflight checks and database health
//   - config: create or validate the configuration file
//
// Processing holds a lock under the data directory so only one pipeline run
// writes to the job database at a time.
package main
