// Package wire defines the frame shapes exchanged between clients,
// brokers, servers, proxies and the registry, plus the JSON codec used to
// put them on the wire. Every multipart ZMQ message in this system carries
// exactly one JSON-encoded payload frame (optionally prefixed by a topic
// frame for pub/sub traffic) — see SPEC_FULL.md §6.
package wire

import (
	"encoding/json"
	"time"
)

// Reserved topic names. A channel may never be created with either name.
const (
	TopicReplica = "replica"
	TopicServers = "servers"
)

// Request is the envelope every client sends to a server via the broker.
type Request struct {
	Service string          `json:"service"`
	Data    json.RawMessage `json:"data"`
}

// Response mirrors Service and always carries a fresh Timestamp/Clock.
type Response struct {
	Service string `json:"service"`
	Data    any    `json:"data"`
}

// Status strings used in response payloads.
const (
	StatusOK    = "OK"
	StatusError = "erro"
)

// ErrorData is the payload shape for any `erro` response.
type ErrorData struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Clock     uint64 `json:"clock"`
}

func NewError(message string, clock uint64) ErrorData {
	return ErrorData{Status: StatusError, Message: message, Timestamp: NowISO(), Clock: clock}
}

// NowISO formats the current UTC time the way the registry's `clock`
// service and every emitted record do: RFC3339 with nanoseconds and a
// trailing "Z", matching the original service's datetime.utcnow().isoformat()+"Z".
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.999999999Z")
}

// PublishRecord is appended to publications.jsonl and emitted on the
// channel topic and on the replica topic.
type PublishRecord struct {
	Type      string `json:"type"`
	Origin    string `json:"origin"`
	Channel   string `json:"channel"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Clock     uint64 `json:"clock"`
}

// MessageRecord is appended to messages.jsonl and emitted on the dst-user
// topic and on the replica topic.
type MessageRecord struct {
	Type      string `json:"type"`
	Origin    string `json:"origin"`
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Clock     uint64 `json:"clock"`
}

const (
	RecordTypePublish = "publish"
	RecordTypeMessage = "message"
)

// ElectionAnnouncement is emitted on TopicServers whenever a server's
// cached coordinator changes.
type ElectionAnnouncement struct {
	Coordinator string `json:"coordinator"`
	Timestamp   string `json:"timestamp"`
	Clock       uint64 `json:"clock"`
}

// ServerIdentity is the registry's per-server bookkeeping record.
type ServerIdentity struct {
	Name     string  `json:"name"`
	Rank     int     `json:"rank"`
	LastBeat float64 `json:"last_beat"`
}

// IsReservedTopic reports whether name collides with a topic the
// replication/election machinery owns.
func IsReservedTopic(name string) bool {
	return name == TopicReplica || name == TopicServers
}
