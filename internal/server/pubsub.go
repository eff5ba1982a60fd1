package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

// publishTopic sends record as the proxy's two-frame publish shape
// [topic, payload] (SPEC_FULL.md §4.2). Every channel/user/replica/
// election emission goes through this one call site.
func (s *Server) publishTopic(topic string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := zmq4.NewMsgFrom([]byte(topic), payload)
	return s.pub.Send(msg)
}
