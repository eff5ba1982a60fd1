// Package wireclient is a minimal reference client for the wire
// contract: a REQ socket to the broker for request/reply traffic, and a
// SUB socket to the proxy for channel fan-out. No test or command in
// this repository imports it. It is explicitly not a product surface —
// SPEC_FULL.md §4.5 excludes interactive or automated client UIs from
// scope; it exists solely to exercise the wire contract end to end.
package wireclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/chatfed/chatfed/internal/wire"
)

// Client owns a REQ socket dialed to a broker's front address and,
// optionally, a SUB socket dialed to a proxy's xpub address.
type Client struct {
	req zmq4.Socket
	sub zmq4.Socket
}

// Dial connects req to brokerFront. sub is left nil until Subscribe is
// called with a proxy address.
func Dial(ctx context.Context, brokerFront string) (*Client, error) {
	req := zmq4.NewReq(ctx)
	if err := req.Dial(brokerFront); err != nil {
		return nil, fmt.Errorf("wireclient: dial broker %s: %w", brokerFront, err)
	}
	return &Client{req: req}, nil
}

// Subscribe dials a SUB socket to proxyXPub and subscribes to prefix.
// Call it once per desired prefix; ZMQ SUB sockets accept multiple
// subscriptions on the same socket.
func (c *Client) Subscribe(ctx context.Context, proxyXPub, prefix string) error {
	if c.sub == nil {
		c.sub = zmq4.NewSub(ctx)
		if err := c.sub.Dial(proxyXPub); err != nil {
			return fmt.Errorf("wireclient: dial proxy %s: %w", proxyXPub, err)
		}
	}
	return c.sub.SetOption(zmq4.OptionSubscribe, prefix)
}

// Call sends a {service, data} request and waits for the matching
// reply.
func (c *Client) Call(service string, data any) (wire.Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return wire.Response{}, fmt.Errorf("wireclient: marshal %s request: %w", service, err)
	}
	payload, err := json.Marshal(wire.Request{Service: service, Data: raw})
	if err != nil {
		return wire.Response{}, fmt.Errorf("wireclient: marshal envelope: %w", err)
	}

	if err := c.req.Send(zmq4.NewMsg(payload)); err != nil {
		return wire.Response{}, fmt.Errorf("wireclient: send %s: %w", service, err)
	}

	msg, err := c.req.Recv()
	if err != nil {
		return wire.Response{}, fmt.Errorf("wireclient: recv %s: %w", service, err)
	}
	if len(msg.Frames) == 0 {
		return wire.Response{}, fmt.Errorf("wireclient: empty %s reply", service)
	}

	var resp wire.Response
	if err := json.Unmarshal(msg.Frames[0], &resp); err != nil {
		return wire.Response{}, fmt.Errorf("wireclient: decode %s reply: %w", service, err)
	}
	return resp, nil
}

// Recv blocks for the next subscribed publish frame, returning its
// topic and decoded payload. Subscribe must have been called first.
func (c *Client) Recv() (topic string, payload json.RawMessage, err error) {
	if c.sub == nil {
		return "", nil, fmt.Errorf("wireclient: Recv called before Subscribe")
	}
	msg, err := c.sub.Recv()
	if err != nil {
		return "", nil, fmt.Errorf("wireclient: recv publish: %w", err)
	}
	if len(msg.Frames) < 2 {
		return "", nil, fmt.Errorf("wireclient: malformed publish frame")
	}
	return string(msg.Frames[0]), msg.Frames[1], nil
}

// Close releases every socket this client owns.
func (c *Client) Close() error {
	reqErr := c.req.Close()
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			return err
		}
	}
	return reqErr
}
