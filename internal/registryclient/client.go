// Package registryclient is the application server's REQ-socket wrapper
// around the reference/registry service: one method per registry
// service (SPEC_FULL.md §4.4), each round-tripping a single wire.Request
// and returning the reply's clock for the caller to fold into its own.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/chatfed/chatfed/internal/wire"
)

// Client owns a single REQ socket to the registry. REQ sockets are
// strictly request-then-reply, so calls are serialized by mu: a second
// call waits until the first one's reply has arrived, matching the
// registry's one-at-a-time serving loop.
type Client struct {
	mu  sync.Mutex
	req zmq4.Socket
}

// Connect dials addr over a REQ socket.
func Connect(ctx context.Context, addr string) (*Client, error) {
	req := zmq4.NewReq(ctx)
	if err := req.Dial(addr); err != nil {
		return nil, fmt.Errorf("registryclient: dial %s: %w", addr, err)
	}
	return &Client{req: req}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.req.Close()
}

func (c *Client) call(service string, req any) (json.RawMessage, error) {
	payload, err := json.Marshal(wire.Request{Service: service, Data: mustRaw(req)})
	if err != nil {
		return nil, fmt.Errorf("registryclient: marshal %s request: %w", service, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.req.Send(zmq4.NewMsg(payload)); err != nil {
		return nil, fmt.Errorf("registryclient: send %s: %w", service, err)
	}

	msg, err := c.req.Recv()
	if err != nil {
		return nil, fmt.Errorf("registryclient: recv %s: %w", service, err)
	}
	if len(msg.Frames) == 0 {
		return nil, fmt.Errorf("registryclient: empty %s reply", service)
	}

	var resp wire.Response
	if err := json.Unmarshal(msg.Frames[0], &resp); err != nil {
		return nil, fmt.Errorf("registryclient: decode %s reply: %w", service, err)
	}
	return json.Marshal(resp.Data)
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

type userRequest struct {
	User  string `json:"user"`
	Clock uint64 `json:"clock"`
}

// Rank requests (or recalls) this server's rank, returning it alongside
// the registry's stamped logical clock.
func (c *Client) Rank(name string, localClock uint64) (rank int, registryClock uint64, err error) {
	raw, err := c.call("rank", userRequest{User: name, Clock: localClock})
	if err != nil {
		return 0, 0, err
	}
	var out struct {
		Rank  int    `json:"rank"`
		Clock uint64 `json:"clock"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, 0, fmt.Errorf("registryclient: decode rank reply: %w", err)
	}
	return out.Rank, out.Clock, nil
}

// List fetches the full known-server map.
func (c *Client) List(localClock uint64) (servers map[string]wire.ServerIdentity, registryClock uint64, err error) {
	raw, err := c.call("list", userRequest{Clock: localClock})
	if err != nil {
		return nil, 0, err
	}
	var out struct {
		List  map[string]wire.ServerIdentity `json:"list"`
		Clock uint64                         `json:"clock"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, 0, fmt.Errorf("registryclient: decode list reply: %w", err)
	}
	return out.List, out.Clock, nil
}

// Heartbeat reports liveness for name.
func (c *Client) Heartbeat(name string, localClock uint64) (registryClock uint64, err error) {
	raw, err := c.call("heartbeat", userRequest{User: name, Clock: localClock})
	if err != nil {
		return 0, err
	}
	var out struct {
		Clock uint64 `json:"clock"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("registryclient: decode heartbeat reply: %w", err)
	}
	return out.Clock, nil
}

// ClockProbe performs one Berkeley-style clock-sync round trip: the
// registry's wall-clock time and stamped logical clock are returned for
// the caller to fold into its own logical clock (SPEC_FULL.md §4.4). No
// physical clock is ever adjusted.
func (c *Client) ClockProbe(localClock uint64) (registryTime time.Time, registryClock uint64, err error) {
	raw, err := c.call("clock", userRequest{Clock: localClock})
	if err != nil {
		return time.Time{}, 0, err
	}
	var out struct {
		Time  string `json:"time"`
		Clock uint64 `json:"clock"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return time.Time{}, 0, fmt.Errorf("registryclient: decode clock reply: %w", err)
	}
	t, parseErr := time.Parse("2006-01-02T15:04:05.999999999Z", out.Time)
	if parseErr != nil {
		t = time.Time{}
	}
	return t, out.Clock, nil
}
