package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/wire"
)

// ServeRequests is the main client-request loop: receive, dispatch
// through Handle, reply. It blocks until ctx is canceled.
func (s *Server) ServeRequests(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := s.rep.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("server recv error", zap.Error(err))
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}

		var req wire.Request
		if err := json.Unmarshal(msg.Frames[0], &req); err != nil {
			s.log.Warn("server dropped undecodable frame", zap.Error(err))
			continue
		}

		service, data := s.Handle(req)
		payload, err := json.Marshal(wire.Response{Service: service, Data: data})
		if err != nil {
			s.log.Warn("server marshal reply failed", zap.Error(err))
			continue
		}
		if err := s.rep.Send(zmq4.NewMsg(payload)); err != nil {
			s.log.Warn("server send error", zap.Error(err))
		}
	}
}

// Run starts every background loop (client requests, replica ingestion,
// heartbeats) and blocks until one exits or ctx is canceled.
func (s *Server) Run(ctx context.Context, heartbeatInterval time.Duration) error {
	if err := s.Bootstrap(); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- s.ServeRequests(ctx) }()
	go func() { errCh <- s.RunReplicaListener(ctx) }()
	go s.RunHeartbeat(ctx, heartbeatInterval)
	go s.sampleProcessStats(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
