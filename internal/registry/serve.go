package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/wire"
)

// Serve binds a REP socket at addr and answers requests against state
// until ctx is canceled. The registry REQ socket convention (strict
// request/reply, no timeout) means this loop only ever has one request
// in flight at a time — matching SPEC_FULL.md §5's "sole user" rule from
// the server side.
func Serve(ctx context.Context, state *State, addr string, log *zap.Logger) error {
	rep := zmq4.NewRep(ctx)
	defer rep.Close()

	if err := rep.Listen(addr); err != nil {
		return fmt.Errorf("registry: listen %s: %w", addr, err)
	}
	log.Info("registry listening", zap.String("addr", addr))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := rep.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("registry recv error", zap.Error(err))
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}

		var req wire.Request
		if err := json.Unmarshal(msg.Frames[0], &req); err != nil {
			log.Warn("registry dropped undecodable frame", zap.Error(err))
			continue
		}

		service, data := state.Handle(req)
		payload, err := json.Marshal(wire.Response{Service: service, Data: data})
		if err != nil {
			log.Warn("registry marshal reply failed", zap.Error(err))
			continue
		}

		if err := rep.Send(zmq4.NewMsg(payload)); err != nil {
			log.Warn("registry send error", zap.Error(err))
		}
	}
}
