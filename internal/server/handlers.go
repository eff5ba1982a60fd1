package server

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/wire"
)

// clockedRequest is embedded by every request payload that carries a
// sender-observed logical clock value, per SPEC_FULL.md §6.
type clockedRequest struct {
	Clock uint64 `json:"clock"`
}

// Handle dispatches one decoded client request and returns the service
// name and response payload to be re-encoded onto the wire. Every
// inbound request first folds its clock into the server's own
// (Observe). Replies are stamped with that result, except publish and
// message replies, which take a fresh Next() after the emitted record
// (SPEC_FULL.md §4.3).
func (s *Server) Handle(req wire.Request) (string, any) {
	requestID := uuid.NewString()

	var probe clockedRequest
	_ = json.Unmarshal(req.Data, &probe)
	localClock := s.clk.Observe(probe.Clock)
	if s.m != nil {
		s.m.LogicalClock.Set(float64(localClock))
	}
	s.log.Debug("request received", zap.String("request_id", requestID), zap.String("service", req.Service))

	status := wire.StatusOK
	var data any
	switch req.Service {
	case "login", "register_user":
		data = s.handleRegisterUser(req.Data, localClock)
	case "users":
		data = map[string]any{"status": wire.StatusOK, "users": s.channels.Users(), "timestamp": wire.NowISO(), "clock": localClock}
	case "channel":
		data = s.handleCreateChannel(req.Data, localClock)
	case "channels", "list_channels":
		data = map[string]any{"status": wire.StatusOK, "channels": s.channels.Channels(), "timestamp": wire.NowISO(), "clock": localClock}
	case "publish":
		data = s.handlePublish(req.Data, localClock)
	case "message":
		data = s.handleMessage(req.Data, localClock)
	case "clock":
		data = map[string]any{"status": wire.StatusOK, "clock": localClock, "timestamp": wire.NowISO()}
	case "election":
		data = map[string]any{"election": wire.StatusOK, "coordinator": s.Coordinator(), "clock": localClock, "timestamp": wire.NowISO()}
	default:
		data = wire.NewError("serviço desconhecido", localClock)
	}

	if errData, ok := data.(wire.ErrorData); ok {
		status = errData.Status
	}
	if s.m != nil {
		s.m.RequestsTotal.WithLabelValues(req.Service, status).Inc()
	}
	s.log.Debug("request handled", zap.String("request_id", requestID), zap.String("status", status))

	s.afterHandled()
	return req.Service, data
}

type registerUserRequest struct {
	User  string `json:"user"`
	Clock uint64 `json:"clock"`
}

func (s *Server) handleRegisterUser(raw json.RawMessage, localClock uint64) any {
	var r registerUserRequest
	if err := json.Unmarshal(raw, &r); err != nil || r.User == "" {
		return wire.NewError("usuário inválido", localClock)
	}
	users := s.channels.AddUser(r.User)
	s.log.Info("user registered", zap.String("user", r.User))
	return map[string]any{"status": wire.StatusOK, "user": r.User, "users": users, "timestamp": wire.NowISO(), "clock": localClock}
}

type createChannelRequest struct {
	Channel string `json:"channel"`
	Clock   uint64 `json:"clock"`
}

func (s *Server) handleCreateChannel(raw json.RawMessage, localClock uint64) any {
	var r createChannelRequest
	if err := json.Unmarshal(raw, &r); err != nil || r.Channel == "" {
		return wire.NewError("canal inválido", localClock)
	}
	if err := s.channels.AddChannel(r.Channel); err != nil {
		return wire.NewError(err.Error(), localClock)
	}
	s.log.Info("channel created", zap.String("channel", r.Channel))
	return map[string]any{"status": wire.StatusOK, "channel": r.Channel, "channels": s.channels.Channels(), "timestamp": wire.NowISO(), "clock": localClock}
}

type publishRequest struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	Message string `json:"message"`
	Clock   uint64 `json:"clock"`
}

// handlePublish validates, persists, and broadcasts a channel
// publication in the exact order SPEC_FULL.md §4.3 requires: validate,
// build the record, publish it on the channel topic, append it to
// publications.jsonl, re-publish it on the replica topic, then reply.
func (s *Server) handlePublish(raw json.RawMessage, localClock uint64) any {
	var r publishRequest
	if err := json.Unmarshal(raw, &r); err != nil || r.Channel == "" || r.User == "" {
		return wire.NewError("publicação inválida", localClock)
	}
	if isReserved(r.Channel) {
		return wire.NewError("nome de canal reservado", localClock)
	}
	if !s.channels.HasChannel(r.Channel) {
		return wire.NewError("canal inexistente", localClock)
	}
	if !s.channels.HasUser(r.User) {
		return wire.NewError("usuário desconhecido", localClock)
	}

	record := wire.PublishRecord{
		Type:      wire.RecordTypePublish,
		Origin:    s.Name,
		Channel:   r.Channel,
		User:      r.User,
		Message:   r.Message,
		Timestamp: wire.NowISO(),
		Clock:     s.clk.Next(),
	}

	if err := s.publishTopic(r.Channel, record); err != nil {
		s.log.Warn("publish to channel topic failed", zap.Error(err))
	}
	if err := s.pubLog.Append(record); err != nil {
		s.log.Warn("append publications log failed", zap.Error(err))
	} else if s.m != nil {
		s.m.PublicationsLog.Inc()
	}
	if err := s.publishTopic(wire.TopicReplica, record); err != nil {
		s.log.Warn("replica echo failed", zap.Error(err))
	}

	replyClock := s.clk.Next()
	return map[string]any{"status": wire.StatusOK, "timestamp": wire.NowISO(), "clock": replyClock}
}

type messageRequest struct {
	Dst     string `json:"dst"`
	Src     string `json:"src"`
	Message string `json:"message"`
	Clock   uint64 `json:"clock"`
}

// handleMessage is handlePublish's direct-message twin: same
// validate/emit/log/replicate/reply sequence, addressed to a single
// user's topic instead of a channel's.
func (s *Server) handleMessage(raw json.RawMessage, localClock uint64) any {
	var r messageRequest
	if err := json.Unmarshal(raw, &r); err != nil || r.Dst == "" || r.Src == "" {
		return wire.NewError("mensagem inválida", localClock)
	}
	if isReserved(r.Dst) {
		return wire.NewError("destino reservado", localClock)
	}
	if !s.channels.HasUser(r.Dst) || !s.channels.HasUser(r.Src) {
		return wire.NewError("usuário desconhecido", localClock)
	}

	record := wire.MessageRecord{
		Type:      wire.RecordTypeMessage,
		Origin:    s.Name,
		Src:       r.Src,
		Dst:       r.Dst,
		Message:   r.Message,
		Timestamp: wire.NowISO(),
		Clock:     s.clk.Next(),
	}

	if err := s.publishTopic(r.Dst, record); err != nil {
		s.log.Warn("publish to user topic failed", zap.Error(err))
	}
	if err := s.msgLog.Append(record); err != nil {
		s.log.Warn("append messages log failed", zap.Error(err))
	} else if s.m != nil {
		s.m.MessagesLog.Inc()
	}
	if err := s.publishTopic(wire.TopicReplica, record); err != nil {
		s.log.Warn("replica echo failed", zap.Error(err))
	}

	replyClock := s.clk.Next()
	return map[string]any{"status": wire.StatusOK, "timestamp": wire.NowISO(), "clock": replyClock}
}

// afterHandled bumps the handled-request counter and, every syncEvery
// requests, triggers a registry re-sync and re-election (SPEC_FULL.md
// §4.3's "sync_every" cadence).
func (s *Server) afterHandled() {
	s.electionMu.Lock()
	s.handledCount++
	due := s.handledCount%s.syncEvery == 0
	s.electionMu.Unlock()

	if due {
		go s.syncAndElect()
	}
}
