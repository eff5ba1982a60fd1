package proxy

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

// TestPrefixMatchDelivery checks that a subscriber to "general" receives
// a publish on "general" but not one on "random" — the prefix-matching
// contract from SPEC_FULL.md §4.2.
func TestPrefixMatchDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logging.New("error")
	require.NoError(t, err)
	m := metrics.NewProxy(prometheus.NewRegistry())

	p := New(ctx, m, log)
	require.NoError(t, p.Listen("inproc://proxy-xsub-test", "inproc://proxy-xpub-test"))
	defer p.Close()

	go p.Run(ctx)

	sub := zmq4.NewSub(ctx)
	defer sub.Close()
	require.NoError(t, sub.Dial("inproc://proxy-xpub-test"))
	require.NoError(t, sub.SetOption(zmq4.OptionSubscribe, "general"))

	// give the subscription control frame time to propagate upstream.
	time.Sleep(200 * time.Millisecond)

	pub := zmq4.NewPub(ctx)
	defer pub.Close()
	require.NoError(t, pub.Dial("inproc://proxy-xsub-test"))

	require.NoError(t, pub.Send(zmq4.NewMsgFrom([]byte("random"), []byte("should not arrive"))))
	require.NoError(t, pub.Send(zmq4.NewMsgFrom([]byte("general"), []byte("hello"))))

	done := make(chan zmq4.Msg, 1)
	go func() {
		msg, err := sub.Recv()
		if err == nil {
			done <- msg
		}
	}()

	select {
	case msg := <-done:
		require.Len(t, msg.Frames, 2)
		require.Equal(t, "general", string(msg.Frames[0]))
		require.Equal(t, "hello", string(msg.Frames[1]))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for matching publication")
	}
}
