package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chatfed/chatfed/internal/logging"
	"github.com/chatfed/chatfed/internal/logstore"
	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/wire"
)

var inprocCounter int

// newTestServer builds a Server with real logstore/channel-registry state
// and a real (but peerless) PUB socket, skipping the broker/registry/
// replica wiring that unit-level handler tests don't exercise.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	channels, err := OpenChannelRegistry(filepath.Join(dir, "registry.json"))
	require.NoError(t, err)
	pubLog, err := logstore.Open(filepath.Join(dir, "publications.jsonl"))
	require.NoError(t, err)
	msgLog, err := logstore.Open(filepath.Join(dir, "messages.jsonl"))
	require.NoError(t, err)

	log, err := logging.New("error")
	require.NoError(t, err)

	inprocCounter++
	addr := fmt.Sprintf("inproc://server-test-pub-%d", inprocCounter)
	pub := zmq4.NewPub(ctx)
	require.NoError(t, pub.Listen(addr))
	t.Cleanup(func() { _ = pub.Close() })

	return &Server{
		Name:      "srv-test",
		pub:       pub,
		channels:  channels,
		pubLog:    pubLog,
		msgLog:    msgLog,
		m:         metrics.NewServer(prometheus.NewRegistry(), "srv-test"),
		log:       log,
		servers:   map[string]wire.ServerIdentity{},
		syncEvery: 10,
	}, dir
}

func TestHandleUnknownService(t *testing.T) {
	s, _ := newTestServer(t)
	service, data := s.Handle(wire.Request{Service: "bogus", Data: json.RawMessage(`{}`)})
	require.Equal(t, "bogus", service)
	errData, ok := data.(wire.ErrorData)
	require.True(t, ok)
	require.Equal(t, "serviço desconhecido", errData.Message)
}

func TestRegisterUserThenUsers(t *testing.T) {
	s, _ := newTestServer(t)
	_, data := s.Handle(wire.Request{Service: "register_user", Data: json.RawMessage(`{"user":"alice","clock":0}`)})
	ok := data.(map[string]any)
	require.Equal(t, wire.StatusOK, ok["status"])

	_, data2 := s.Handle(wire.Request{Service: "users", Data: json.RawMessage(`{"clock":0}`)})
	users := data2.(map[string]any)["users"].([]string)
	require.Contains(t, users, "alice")
}

func TestCreateChannelRejectsDuplicateAndReserved(t *testing.T) {
	s, _ := newTestServer(t)

	_, data := s.Handle(wire.Request{Service: "channel", Data: json.RawMessage(`{"channel":"eng","clock":0}`)})
	require.Equal(t, wire.StatusOK, data.(map[string]any)["status"])

	_, dup := s.Handle(wire.Request{Service: "channel", Data: json.RawMessage(`{"channel":"eng","clock":0}`)})
	dupErr, ok := dup.(wire.ErrorData)
	require.True(t, ok)
	require.Equal(t, ErrChannelExists.Error(), dupErr.Message)

	_, reserved := s.Handle(wire.Request{Service: "channel", Data: json.RawMessage(`{"channel":"replica","clock":0}`)})
	resErr, ok := reserved.(wire.ErrorData)
	require.True(t, ok)
	require.Equal(t, ErrReservedTopic.Error(), resErr.Message)
}

func TestPublishToUnknownChannelErrors(t *testing.T) {
	s, _ := newTestServer(t)
	_, data := s.Handle(wire.Request{Service: "publish", Data: json.RawMessage(`{"channel":"nope","user":"alice","message":"hi","clock":0}`)})
	errData, ok := data.(wire.ErrorData)
	require.True(t, ok)
	require.Equal(t, "canal inexistente", errData.Message)
}

func TestPublishToSeededChannelSucceedsAndLogs(t *testing.T) {
	s, dir := newTestServer(t)
	_, data := s.Handle(wire.Request{Service: "publish", Data: json.RawMessage(`{"channel":"general","user":"alice","message":"hi","clock":0}`)})
	ok := data.(map[string]any)
	require.Equal(t, wire.StatusOK, ok["status"])

	count, err := logstore.Count(filepath.Join(dir, "publications.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestClockAdvancesMonotonically(t *testing.T) {
	s, _ := newTestServer(t)
	before := s.clk.Value()
	_, data := s.Handle(wire.Request{Service: "clock", Data: json.RawMessage(`{"clock":0}`)})
	after := uint64(data.(map[string]any)["clock"].(uint64))
	require.Greater(t, after, before)
}
