// Package proxy implements the topic-filtered publish/subscribe switch
// described in SPEC_FULL.md §4.2: an XSUB endpoint where publishers
// (application servers) send [topic, payload] frames, and an XPUB
// endpoint where subscribers (clients, and peer servers on the
// "replica"/"servers" topics) receive them. Prefix matching between a
// subscriber's subscription and a published topic is provided by the
// XPUB/XSUB socket types themselves — this package only relays frames in
// both directions.
package proxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/metrics"
)

// Proxy owns the XSUB (publisher-facing) and XPUB (subscriber-facing)
// sockets and relays frames between them until its context is canceled.
type Proxy struct {
	xsub zmq4.Socket
	xpub zmq4.Socket
	m    *metrics.Proxy
	log  *zap.Logger

	prefixMu sync.Mutex
	prefixes map[string]int // subscription prefix -> active subscriber count
}

func New(ctx context.Context, m *metrics.Proxy, log *zap.Logger) *Proxy {
	return &Proxy{
		xsub:     zmq4.NewXSub(ctx),
		xpub:     zmq4.NewXPub(ctx),
		m:        m,
		log:      log,
		prefixes: make(map[string]int),
	}
}

// Listen binds the publisher-facing (xsub) and subscriber-facing (xpub)
// endpoints.
func (p *Proxy) Listen(xsubAddr, xpubAddr string) error {
	if err := p.xsub.Listen(xsubAddr); err != nil {
		return fmt.Errorf("proxy: listen xsub %s: %w", xsubAddr, err)
	}
	if err := p.xpub.Listen(xpubAddr); err != nil {
		return fmt.Errorf("proxy: listen xpub %s: %w", xpubAddr, err)
	}
	return nil
}

// Run relays published data downstream (xsub -> xpub) and subscription
// control frames upstream (xpub -> xsub) until ctx is canceled.
func (p *Proxy) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go p.relay(ctx, p.xsub, p.xpub, "publish", errCh)
	go p.relay(ctx, p.xpub, p.xsub, "subscribe", errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (p *Proxy) relay(ctx context.Context, from, to zmq4.Socket, direction string, errCh chan<- error) {
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
			p.log.Warn("proxy recv error", zap.String("direction", direction), zap.Error(err))
			continue
		}

		if err := to.Send(msg); err != nil {
			p.log.Warn("proxy send error", zap.String("direction", direction), zap.Error(err))
			continue
		}

		if direction == "subscribe" {
			p.trackSubscription(msg)
		}

		if p.m != nil {
			p.m.FramesRelayed.WithLabelValues(direction).Inc()
		}
	}
}

// trackSubscription decodes an XPUB subscribe/unsubscribe control frame
// (first byte 1=subscribe, 0=unsubscribe, remainder=topic prefix) and
// keeps the SubscriptionPrefixes gauge in sync.
func (p *Proxy) trackSubscription(msg zmq4.Msg) {
	if len(msg.Frames) == 0 || len(msg.Frames[0]) == 0 {
		return
	}
	frame := msg.Frames[0]
	subscribe := frame[0] == 1
	prefix := string(frame[1:])

	p.prefixMu.Lock()
	defer p.prefixMu.Unlock()

	if subscribe {
		p.prefixes[prefix]++
	} else if p.prefixes[prefix] > 0 {
		p.prefixes[prefix]--
		if p.prefixes[prefix] == 0 {
			delete(p.prefixes, prefix)
		}
	}

	if p.m != nil {
		p.m.SubscriptionPrefixes.Set(float64(len(p.prefixes)))
	}
}

// Close releases both sockets.
func (p *Proxy) Close() error {
	xsubErr := p.xsub.Close()
	xpubErr := p.xpub.Close()
	if xsubErr != nil {
		return xsubErr
	}
	return xpubErr
}
