package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mediasuite/internal/logging"
	"mediasuite/internal/services"
)

// Handler processes an envelope dispatched by action. A returned error is
// answered with an error envelope to the sender.
type Handler func(ctx context.Context, env Envelope) (map[string]any, error)

// Transport delivers sent envelopes to their recipients.
type Transport interface {
	Transmit(ctx context.Context, env Envelope) error
}

// Stats summarizes one participant's message handling.
type Stats struct {
	TotalMessages  int `json:"total_messages"`
	PendingAcks    int `json:"pending_acks"`
	Handlers       int `json:"registered_handlers"`
	ConnectedPeers int `json:"connected_agents"`
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithLogger sets the protocol logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) { p.logger = logger }
}

// WithTransport sets the transport used by Send.
func WithTransport(t Transport) Option {
	return func(p *Protocol) { p.transport = t }
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		if now != nil {
			p.now = now
		}
	}
}

// Protocol is one participant's view of the message exchange.
type Protocol struct {
	id     string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	transport Transport
	handlers  map[string]Handler
	pending   map[string]Envelope
	log       []Envelope
	peers     map[string]struct{}
}

// New constructs a protocol participant identified by id.
func New(id string, opts ...Option) *Protocol {
	p := &Protocol{
		id:       strings.TrimSpace(id),
		now:      time.Now,
		handlers: make(map[string]Handler),
		pending:  make(map[string]Envelope),
		peers:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "protocol").With(logging.String("participant", p.id))
	return p
}

// ID returns the participant identifier.
func (p *Protocol) ID() string { return p.id }

// RegisterHandler associates action with handler. A later registration for
// the same action replaces the earlier one.
func (p *Protocol) RegisterHandler(action string, handler Handler) {
	action = strings.TrimSpace(action)
	if action == "" || handler == nil {
		return
	}
	p.mu.Lock()
	_, replaced := p.handlers[action]
	p.handlers[action] = handler
	p.mu.Unlock()

	if replaced {
		logging.WarnWithContext(p.logger, "handler replaced", "handler_replaced",
			logging.Action(action),
			logging.Impact("earlier handler no longer receives this action"),
			logging.ErrorHint("register each action once per participant"),
		)
		return
	}
	p.logger.Debug("handler registered", logging.Action(action))
}

// Capabilities lists the registered actions in sorted order.
func (p *Protocol) Capabilities() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.handlers))
}

// CreateMessage builds an envelope with a fresh message id and the current
// time. An empty from defaults to this participant. Nothing is sent.
func (p *Protocol) CreateMessage(from, to, action string, data map[string]any, opts ...MessageOption) Envelope {
	if strings.TrimSpace(from) == "" {
		from = p.id
	}
	now := p.now().UTC()
	env := Envelope{
		Header: Header{
			ProtocolVersion: Version,
			MessageID:       ulid.Make().String(),
			Timestamp:       now,
			FromID:          from,
			ToID:            to,
			Priority:        PriorityNormal,
		},
		Payload: Payload{
			Action: action,
			Data:   data,
			Metadata: map[string]any{
				"created_at":         now.Format(time.RFC3339Nano),
				"agent_capabilities": p.Capabilities(),
			},
		},
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env.clone()
}

// Send appends env to the log, tracks it for acknowledgment when required and
// hands it to the transport. Transport failures are logged, not returned.
// Send is not idempotent: every call grows the log.
func (p *Protocol) Send(ctx context.Context, env Envelope) {
	env = env.clone()

	p.mu.Lock()
	p.log = append(p.log, env)
	if env.Header.RequiresAck {
		p.pending[env.Header.MessageID] = env
	}
	if to := env.Header.ToID; to != "" && to != BroadcastID {
		p.peers[to] = struct{}{}
	}
	transport := p.transport
	p.mu.Unlock()

	p.logger.Debug("message sent",
		logging.EventType("message_sent"),
		logging.String(logging.FieldMessageID, env.Header.MessageID),
		logging.Action(env.Payload.Action),
		logging.String("to", env.Header.ToID),
		logging.String("priority", env.Header.Priority.String()),
	)

	if transport == nil {
		return
	}
	if err := transport.Transmit(ctx, env); err != nil {
		logging.WarnWithContext(p.logger, "message transmission failed", "message_transmit_failed",
			logging.String(logging.FieldMessageID, env.Header.MessageID),
			logging.Action(env.Payload.Action),
			logging.String("to", env.Header.ToID),
			logging.Error(err),
			logging.Impact("recipient did not observe the message"),
		)
	}
}

// Receive logs env, acknowledges it when required and dispatches it to the
// handler registered for its action. The boolean reports whether a handler
// produced a result. Handler failures are answered with an error envelope and
// never returned, except for error envelopes, which are only logged.
// Envelopes without a handler are dropped.
func (p *Protocol) Receive(ctx context.Context, env Envelope) (map[string]any, bool) {
	env = env.clone()

	p.mu.Lock()
	p.log = append(p.log, env)
	if from := env.Header.FromID; from != "" {
		p.peers[from] = struct{}{}
	}
	p.mu.Unlock()

	id := env.Header.MessageID
	ctx = services.WithMessageID(ctx, id)
	logger := logging.WithContext(ctx, p.logger)

	if env.Header.RequiresAck {
		ack := p.CreateMessage(p.id, env.Header.FromID, ActionAck,
			map[string]any{"ack_for": id},
			WithCorrelationID(id),
		)
		p.Send(ctx, ack)
	}

	if env.Payload.Action == ActionAck {
		target := env.Header.CorrelationID
		if target == "" {
			target = env.DataString("ack_for")
		}
		p.resolveAck(target)
	}

	p.mu.Lock()
	handler := p.handlers[env.Payload.Action]
	p.mu.Unlock()
	if handler == nil {
		logger.Debug("no handler registered; message dropped",
			logging.EventType("message_unhandled"),
			logging.Action(env.Payload.Action),
		)
		return nil, false
	}

	result, err := invokeHandler(ctx, handler, env)
	if err != nil && env.Payload.Action == ActionError {
		wrapped := services.Wrap(services.ErrProtocolDispatch, "protocol", "receive", env.Payload.Action, err)
		logging.WarnWithContext(logger, "error handler failed", "handler_failed",
			logging.Action(env.Payload.Action),
			logging.String("from", env.Header.FromID),
			logging.Error(wrapped),
			logging.Impact("error envelopes are never answered; failure logged only"),
		)
		return nil, false
	}
	if err != nil {
		wrapped := services.Wrap(services.ErrProtocolDispatch, "protocol", "receive", env.Payload.Action, err)
		logging.WarnWithContext(logger, "handler failed", "handler_failed",
			logging.Action(env.Payload.Action),
			logging.Error(wrapped),
			logging.Impact("sender receives an error reply"),
		)
		reply := p.CreateMessage(p.id, env.Header.FromID, ActionError,
			map[string]any{
				"error":               err.Error(),
				"original_message_id": id,
			},
			WithCorrelationID(id),
		)
		p.Send(ctx, reply)
		return nil, false
	}
	return result, true
}

func invokeHandler(ctx context.Context, handler Handler, env Envelope) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, env)
}

// resolveAck clears a pending acknowledgment. Unknown ids are ignored.
func (p *Protocol) resolveAck(messageID string) bool {
	if messageID == "" {
		return false
	}
	p.mu.Lock()
	_, ok := p.pending[messageID]
	delete(p.pending, messageID)
	p.mu.Unlock()
	if ok {
		p.logger.Debug("acknowledgment received",
			logging.EventType("ack_resolved"),
			logging.String(logging.FieldCorrelationID, messageID),
		)
	}
	return ok
}

// Pending returns the message ids still awaiting acknowledgment, sorted.
func (p *Protocol) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.pending))
}

// IsPending reports whether messageID awaits acknowledgment.
func (p *Protocol) IsPending(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[messageID]
	return ok
}

// Log returns a copy of the message log in append order.
func (p *Protocol) Log() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, len(p.log))
	for i, env := range p.log {
		out[i] = env.clone()
	}
	return out
}

// Stats reports message handling counters.
func (p *Protocol) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalMessages:  len(p.log),
		PendingAcks:    len(p.pending),
		Handlers:       len(p.handlers),
		ConnectedPeers: len(p.peers),
	}
}

func (p *Protocol) setTransport(t Transport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport != nil && p.transport != t {
		return errors.New("protocol already has a transport")
	}
	p.transport = t
	return nil
}
