package registry

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/wire"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ref.json")
	s, err := Open(path, metrics.NewRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	return s
}

func TestRankIsBijectiveAndStable(t *testing.T) {
	s := newTestState(t)

	r1 := s.Rank("srv1")
	r2 := s.Rank("srv2")
	r3 := s.Rank("srv3")

	assert.Equal(t, []int{1, 2, 3}, []int{r1, r2, r3})

	// repeat calls are idempotent: rank is never reissued.
	assert.Equal(t, r1, s.Rank("srv1"))
	assert.Equal(t, r2, s.Rank("srv2"))
}

func TestRankPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.json")
	m := metrics.NewRegistry(prometheus.NewRegistry())

	s1, err := Open(path, m)
	require.NoError(t, err)
	s1.Rank("srv1")
	s1.Rank("srv2")

	s2, err := Open(path, m)
	require.NoError(t, err)

	assert.Equal(t, 1, s2.Rank("srv1"))
	assert.Equal(t, 2, s2.Rank("srv2"))
	// a brand new name after reopen must not reuse an old rank.
	assert.Equal(t, 3, s2.Rank("srv3"))
}

func TestHeartbeatIgnoresUnknownServer(t *testing.T) {
	s := newTestState(t)
	s.Heartbeat("ghost") // must not panic or auto-register

	list := s.List()
	_, ok := list["ghost"]
	assert.False(t, ok)
}

func TestHandleUnknownService(t *testing.T) {
	s := newTestState(t)
	req := wire.Request{Service: "bogus", Data: json.RawMessage(`{}`)}

	service, data := s.Handle(req)
	assert.Equal(t, "bogus", service)

	errData, ok := data.(wire.ErrorData)
	require.True(t, ok)
	assert.Equal(t, wire.StatusError, errData.Status)
	assert.Equal(t, "serviço desconhecido", errData.Message)
}

func TestHandleRankAssignsOnce(t *testing.T) {
	s := newTestState(t)
	req := wire.Request{Service: "rank", Data: json.RawMessage(`{"user":"srv1","clock":0}`)}

	_, data1 := s.Handle(req)
	_, data2 := s.Handle(req)

	m1 := data1.(map[string]any)
	m2 := data2.(map[string]any)
	assert.Equal(t, m1["rank"], m2["rank"])
}

func TestClockAdvancesOnEveryRequest(t *testing.T) {
	s := newTestState(t)
	before := s.clock.Value()

	req := wire.Request{Service: "clock", Data: json.RawMessage(`{"clock":0}`)}
	_, data := s.Handle(req)

	after := data.(map[string]any)["clock"].(uint64)
	assert.Greater(t, after, before)
}
