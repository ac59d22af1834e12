package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version stamped on every envelope.
const Version = "2.0"

// BroadcastID addresses every participant except the sender.
const BroadcastID = "all-agents"

// Actions with protocol-level meaning.
const (
	ActionAck               = "ack"
	ActionError             = "error"
	ActionProcess           = "process"
	ActionProcessComplete   = "process_complete"
	ActionPipelineComplete  = "pipeline_complete"
	ActionPipelineCancelled = "pipeline_cancelled"
)

// Priority orders envelopes for transports that care about urgency.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// String returns the lower-case priority name.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority resolves a priority name, case-insensitively.
func ParsePriority(name string) (Priority, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	for p, n := range priorityNames {
		if n == cleaned {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", name)
}

// MarshalJSON encodes the priority by name.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("marshal priority: invalid value %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("unmarshal priority: %w", err)
	}
	parsed, err := ParsePriority(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Header carries routing and bookkeeping fields.
type Header struct {
	ProtocolVersion string    `json:"version"`
	MessageID       string    `json:"message_id"`
	Timestamp       time.Time `json:"timestamp"`
	FromID          string    `json:"from_agent"`
	ToID            string    `json:"to_agent"`
	Priority        Priority  `json:"priority"`
	RequiresAck     bool      `json:"requires_ack"`
	// CorrelationID is the message id this envelope answers; empty for
	// requests and notifications.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Payload carries the action and its arguments.
type Payload struct {
	Action   string         `json:"action"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Envelope is one protocol message. Envelopes are passed by value; the
// protocol never mutates one after it has been logged.
type Envelope struct {
	Header  Header  `json:"header"`
	Payload Payload `json:"payload"`
}

// ID returns the envelope message id.
func (e Envelope) ID() string { return e.Header.MessageID }

// Action returns the payload action.
func (e Envelope) Action() string { return e.Payload.Action }

// IsReply reports whether the envelope answers another message.
func (e Envelope) IsReply() bool { return e.Header.CorrelationID != "" }

// DataString returns a string value from the payload data.
func (e Envelope) DataString(key string) string {
	if v, ok := e.Payload.Data[key].(string); ok {
		return v
	}
	return ""
}

// clone returns a deep copy of e whose payload values are in the form
// encoding/json decodes them into, so a logged envelope compares equal to
// its own wire round trip and shares nothing with the caller.
func (e Envelope) clone() Envelope {
	out := e
	out.Payload.Data = jsonNativeMap(e.Payload.Data)
	out.Payload.Metadata = jsonNativeMap(e.Payload.Metadata)
	if len(out.Payload.Metadata) == 0 {
		out.Payload.Metadata = nil
	}
	return out
}

func jsonNativeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonNative(v)
	}
	return out
}

// jsonNative converts v to its decoded JSON form: numbers become float64,
// slices []any, structs and maps map[string]any. Values json cannot encode
// are kept as their printed form.
func jsonNative(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

// MessageOption adjusts an envelope under construction.
type MessageOption func(*Envelope)

// WithPriority sets the envelope priority.
func WithPriority(p Priority) MessageOption {
	return func(e *Envelope) { e.Header.Priority = p }
}

// WithRequiresAck asks the recipient to acknowledge receipt.
func WithRequiresAck() MessageOption {
	return func(e *Envelope) { e.Header.RequiresAck = true }
}

// WithCorrelationID links the envelope to the message it answers.
func WithCorrelationID(id string) MessageOption {
	return func(e *Envelope) { e.Header.CorrelationID = strings.TrimSpace(id) }
}

// WithMetadata replaces the default payload metadata.
func WithMetadata(metadata map[string]any) MessageOption {
	return func(e *Envelope) { e.Payload.Metadata = jsonNativeMap(metadata) }
}
