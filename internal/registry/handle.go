package registry

import (
	"encoding/json"
	"time"

	"github.com/chatfed/chatfed/internal/wire"
)

// userRequest carries the "user" field the registry's wire contract uses
// to name the calling server (SPEC_FULL.md §4.4), plus the sender's clock.
type userRequest struct {
	User  string `json:"user"`
	Clock uint64 `json:"clock"`
}

// Handle dispatches one decoded wire.Request and returns the response
// payload (service name + data) to be re-encoded onto the wire. It also
// records request latency if m is non-nil.
func (s *State) Handle(req wire.Request) (string, any) {
	start := time.Now()
	var remote userRequest
	_ = json.Unmarshal(req.Data, &remote)

	localClock := s.NextClock(remote.Clock)

	var data any
	switch req.Service {
	case "rank":
		rank := s.Rank(remote.User)
		data = map[string]any{"rank": rank, "timestamp": wire.NowISO(), "clock": localClock}

	case "list":
		data = map[string]any{"list": s.List(), "timestamp": wire.NowISO(), "clock": localClock}

	case "heartbeat":
		s.Heartbeat(remote.User)
		data = map[string]any{"timestamp": wire.NowISO(), "clock": localClock}

	case "clock":
		data = map[string]any{"time": wire.NowISO(), "clock": localClock}

	default:
		data = wire.NewError("serviço desconhecido", localClock)
	}

	if s.m != nil {
		s.m.RequestLatency.WithLabelValues(req.Service).Observe(time.Since(start).Seconds())
	}
	return req.Service, data
}
