package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/wire"
)

// RunReplicaListener drains the "replica" and "servers" subscriptions
// until ctx is canceled. Frames this server originated are dropped
// (SPEC_FULL.md §5: no re-propagation, no reply); everything else is
// appended to the matching log exactly once.
func (s *Server) RunReplicaListener(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := s.sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("replica listener recv error", zap.Error(err))
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}
		topic := string(msg.Frames[0])
		payload := msg.Frames[1]

		switch topic {
		case wire.TopicReplica:
			s.ingestReplica(payload)
		case wire.TopicServers:
			s.ingestElectionAnnouncement(payload)
		}
	}
}

// replicaEnvelope is decoded just far enough to route the frame to the
// right log and to check self-origin; the full record is re-marshaled
// into the matching typed struct before being appended so the on-disk
// shape matches what the originating server itself writes.
type replicaEnvelope struct {
	Type   string `json:"type"`
	Origin string `json:"origin"`
}

func (s *Server) ingestReplica(payload []byte) {
	var env replicaEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.Warn("replica frame undecodable", zap.Error(err))
		return
	}
	if env.Origin == s.Name {
		return // self-originated echo, already logged when first emitted
	}

	switch env.Type {
	case wire.RecordTypePublish:
		var rec wire.PublishRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			s.log.Warn("replica publish record undecodable", zap.Error(err))
			return
		}
		s.clk.Observe(rec.Clock)
		if err := s.pubLog.Append(rec); err != nil {
			s.log.Warn("append replicated publication failed", zap.Error(err))
			return
		}
		if s.m != nil {
			s.m.PublicationsLog.Inc()
			s.m.ReplicaIngested.Inc()
		}
	case wire.RecordTypeMessage:
		var rec wire.MessageRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			s.log.Warn("replica message record undecodable", zap.Error(err))
			return
		}
		s.clk.Observe(rec.Clock)
		if err := s.msgLog.Append(rec); err != nil {
			s.log.Warn("append replicated message failed", zap.Error(err))
			return
		}
		if s.m != nil {
			s.m.MessagesLog.Inc()
			s.m.ReplicaIngested.Inc()
		}
	default:
		s.log.Warn("replica frame of unknown type", zap.String("type", env.Type))
	}
}

// ingestElectionAnnouncement logs a peer's advisory coordinator
// announcement. Per SPEC_FULL.md §4.3 adoption is optional: this
// server's own Coordinator() view is always computed independently
// from its registry snapshot, never overwritten by a peer's claim.
func (s *Server) ingestElectionAnnouncement(payload []byte) {
	var ann wire.ElectionAnnouncement
	if err := json.Unmarshal(payload, &ann); err != nil {
		s.log.Warn("election announcement undecodable", zap.Error(err))
		return
	}
	s.log.Info("peer election announcement observed", zap.String("coordinator", ann.Coordinator))
}
