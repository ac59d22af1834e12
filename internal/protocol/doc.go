// Package protocol implements the in-process message discipline the
// orchestrator uses to talk to agents.
//
// Every exchange is an Envelope: a header (protocol version, message id,
// timestamp, sender, recipient, priority, acknowledgment flag, correlation id)
// and a payload (action, data, optional metadata). A Protocol instance owns one
// participant's append-only message log, its pending-acknowledgment set and its
// action handlers. Responses, acknowledgments and error replies always carry
// the message id they answer in CorrelationID.
//
// Transport is pluggable. Without one, Send only records the envelope. Bus is
// the in-process transport: it routes envelopes to attached protocols by
// recipient id and fans "all-agents" broadcasts out to every other member.
//
// The log serializes to JSON records (see WriteRecords) so post-mortem tooling
// can replay a job's exchange in send order.
package protocol
