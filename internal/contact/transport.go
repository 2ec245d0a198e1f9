package contact

import (
	"context"

	"go.uber.org/zap"
)

// Transport hands a submitted message to whatever is on the other side.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to a Transport.
type TransportFunc func(ctx context.Context, msg Message) error

func (f TransportFunc) Deliver(ctx context.Context, msg Message) error { return f(ctx, msg) }

// SimulatedTransport accepts every message without sending it anywhere. The
// visible delay comes from the controller's submit latency.
type SimulatedTransport struct {
	Log *zap.Logger
}

func (t SimulatedTransport) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.Log != nil {
		// lengths only, content stays in memory
		t.Log.Debug("Simulated contact delivery",
			zap.Int("name_len", len(msg.Name)),
			zap.Int("body_len", len(msg.Body)),
		)
	}
	return nil
}
