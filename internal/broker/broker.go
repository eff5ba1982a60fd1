// Package broker implements the identity-preserving request/reply router
// described in SPEC_FULL.md §4.1: a ROUTER front accepting client
// requests, a DEALER back load-balancing across attached servers. Both
// sides relay whole multipart frames untouched — ROUTER/DEALER's own
// envelope semantics are what makes replies find their way back to the
// originating client; the broker itself never parses a payload.
package broker

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/metrics"
)

// Broker owns the two sockets and relays frames between them until its
// context is canceled.
type Broker struct {
	front zmq4.Socket
	back  zmq4.Socket
	m     *metrics.Broker
	log   *zap.Logger
}

// New creates (but does not yet bind) a Broker.
func New(ctx context.Context, m *metrics.Broker, log *zap.Logger) *Broker {
	return &Broker{
		front: zmq4.NewRouter(ctx),
		back:  zmq4.NewDealer(ctx),
		m:     m,
		log:   log,
	}
}

// Listen binds the front (client-facing) and back (server-facing)
// endpoints.
func (b *Broker) Listen(frontAddr, backAddr string) error {
	if err := b.front.Listen(frontAddr); err != nil {
		return fmt.Errorf("broker: listen front %s: %w", frontAddr, err)
	}
	if err := b.back.Listen(backAddr); err != nil {
		return fmt.Errorf("broker: listen back %s: %w", backAddr, err)
	}
	return nil
}

// Run relays frames in both directions until ctx is canceled. It blocks
// the calling goroutine; callers typically run it in its own goroutine.
func (b *Broker) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go b.relay(ctx, b.front, b.back, "front_to_back", errCh)
	go b.relay(ctx, b.back, b.front, "back_to_front", errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (b *Broker) relay(ctx context.Context, from, to zmq4.Socket, direction string, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := from.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Warn("broker recv error", zap.String("direction", direction), zap.Error(err))
			continue
		}

		if err := to.Send(msg); err != nil {
			b.log.Warn("broker send error", zap.String("direction", direction), zap.Error(err))
			continue
		}

		if b.m != nil {
			b.m.FramesRelayed.WithLabelValues(direction).Inc()
		}
	}
}

// Close releases both sockets.
func (b *Broker) Close() error {
	ferr := b.front.Close()
	berr := b.back.Close()
	if ferr != nil {
		return ferr
	}
	return berr
}
