package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mediasuite/internal/logging"
)

// ErrUnknownRecipient is returned when no attached participant matches an
// envelope's recipient.
var ErrUnknownRecipient = errors.New("unknown recipient")

// Bus routes envelopes between protocols living in the same process.
// Delivery is synchronous: Transmit returns after the recipient's Receive.
type Bus struct {
	logger *slog.Logger

	mu      sync.RWMutex
	members map[string]*Protocol
	order   []string
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:  logging.NewComponentLogger(logger, "bus"),
		members: make(map[string]*Protocol),
	}
}

// Attach connects p to the bus and makes the bus its transport.
func (b *Bus) Attach(p *Protocol) error {
	if p == nil || p.ID() == "" {
		return errors.New("attach: participant id is required")
	}
	if p.ID() == BroadcastID {
		return fmt.Errorf("attach: %q is reserved for broadcasts", BroadcastID)
	}
	b.mu.Lock()
	if _, exists := b.members[p.ID()]; exists {
		b.mu.Unlock()
		return fmt.Errorf("attach: participant %q already attached", p.ID())
	}
	b.members[p.ID()] = p
	b.order = append(b.order, p.ID())
	b.mu.Unlock()

	if err := p.setTransport(b); err != nil {
		b.Detach(p.ID())
		return fmt.Errorf("attach %s: %w", p.ID(), err)
	}
	return nil
}

// Detach removes a participant. Unknown ids are ignored.
func (b *Bus) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.members[id]; !ok {
		return
	}
	delete(b.members, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
}

// Members lists attached participant ids in attach order.
func (b *Bus) Members() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.order)
}

// Transmit delivers env to its recipient, or to every member except the
// sender when addressed to BroadcastID.
func (b *Bus) Transmit(ctx context.Context, env Envelope) error {
	targets, err := b.resolve(env)
	if err != nil {
		return err
	}
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		target.Receive(ctx, env)
	}
	return nil
}

func (b *Bus) resolve(env Envelope) ([]*Protocol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if env.Header.ToID == BroadcastID {
		targets := make([]*Protocol, 0, len(b.order))
		for _, id := range b.order {
			if id == env.Header.FromID {
				continue
			}
			targets = append(targets, b.members[id])
		}
		return targets, nil
	}
	target, ok := b.members[env.Header.ToID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipient, env.Header.ToID)
	}
	return []*Protocol{target}, nil
}
