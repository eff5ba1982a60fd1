package broker

import (
	"context"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/chatfed/chatfed/internal/logging"
	"github.com/chatfed/chatfed/internal/metrics"
)

// TestRelayRoundTrip wires a REQ client and a REP server through a live
// Broker and checks that a request reaches the server and its reply
// reaches the client unchanged — the identity-preserving contract from
// SPEC_FULL.md §4.1.
func TestRelayRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logging.New("error")
	require.NoError(t, err)
	m := metrics.NewBroker(prometheus.NewRegistry())

	b := New(ctx, m, log)
	require.NoError(t, b.Listen("inproc://broker-front-test", "inproc://broker-back-test"))
	defer b.Close()

	go b.Run(ctx)

	rep := zmq4.NewRep(ctx)
	defer rep.Close()
	require.NoError(t, rep.Dial("inproc://broker-back-test"))

	req := zmq4.NewReq(ctx)
	defer req.Close()
	require.NoError(t, req.Dial("inproc://broker-front-test"))

	go func() {
		msg, err := rep.Recv()
		if err != nil {
			return
		}
		_ = rep.Send(zmq4.NewMsg(append([]byte("echo:"), msg.Frames[0]...)))
	}()

	require.NoError(t, req.Send(zmq4.NewMsg([]byte("ping"))))

	done := make(chan zmq4.Msg, 1)
	go func() {
		msg, err := req.Recv()
		if err == nil {
			done <- msg
		}
	}()

	select {
	case msg := <-done:
		require.Equal(t, "echo:ping", string(msg.Frames[0]))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply through broker")
	}
}
