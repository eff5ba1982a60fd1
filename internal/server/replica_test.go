package server

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chatfed/chatfed/internal/logging"
	"github.com/chatfed/chatfed/internal/logstore"
	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/wire"
)

func newReplicaTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	pubLog, err := logstore.Open(filepath.Join(dir, "publications.jsonl"))
	require.NoError(t, err)
	msgLog, err := logstore.Open(filepath.Join(dir, "messages.jsonl"))
	require.NoError(t, err)
	log, err := logging.New("error")
	require.NoError(t, err)

	return &Server{
		Name:   "srv-local",
		pubLog: pubLog,
		msgLog: msgLog,
		m:      metrics.NewServer(prometheus.NewRegistry(), "srv-local"),
		log:    log,
	}, dir
}

func TestIngestReplicaDropsSelfOrigin(t *testing.T) {
	s, dir := newReplicaTestServer(t)

	rec := wire.PublishRecord{Type: wire.RecordTypePublish, Origin: "srv-local", Channel: "general", User: "alice", Message: "hi"}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	s.ingestReplica(payload)

	count, err := logstore.Count(filepath.Join(dir, "publications.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestIngestReplicaAppendsPeerPublish(t *testing.T) {
	s, dir := newReplicaTestServer(t)

	rec := wire.PublishRecord{Type: wire.RecordTypePublish, Origin: "srv-peer", Channel: "general", User: "alice", Message: "hi"}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	s.ingestReplica(payload)

	count, err := logstore.Count(filepath.Join(dir, "publications.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIngestReplicaAppendsPeerMessage(t *testing.T) {
	s, dir := newReplicaTestServer(t)

	rec := wire.MessageRecord{Type: wire.RecordTypeMessage, Origin: "srv-peer", Src: "alice", Dst: "bob", Message: "hi"}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	s.ingestReplica(payload)

	count, err := logstore.Count(filepath.Join(dir, "messages.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
