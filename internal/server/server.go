// Package server implements the application server: the component that
// terminates client requests (via the broker), publishes and replicates
// channel/direct messages (via the proxy), and participates in rank-based
// coordinator election through the registry. SPEC_FULL.md §4.3.
package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/clock"
	"github.com/chatfed/chatfed/internal/logstore"
	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/registryclient"
	"github.com/chatfed/chatfed/internal/wire"
)

func isReserved(topic string) bool { return wire.IsReservedTopic(topic) }

// Server holds every piece of state one application server instance
// needs: its identity, its channel/user registry, its logs, its clock,
// its election view, and the sockets it uses to talk to the broker,
// proxy and registry.
type Server struct {
	Name string

	rep  zmq4.Socket // REQ-compatible REP endpoint dialed into the broker back side
	pub  zmq4.Socket // publishes into the proxy's xsub side
	sub  zmq4.Socket // subscribed to "replica" (and "servers") on the proxy's xpub side
	regc *registryclient.Client

	channels *ChannelRegistry
	pubLog   *logstore.Log
	msgLog   *logstore.Log
	clk      clock.Logical
	m        *metrics.Server
	log      *zap.Logger

	electionMu  sync.Mutex
	rank        int
	coordinator string // cached name of the server with the lowest known rank
	servers     map[string]wire.ServerIdentity

	handledCount int
	syncEvery    int
}

// Config bundles what New needs beyond wiring its own sockets.
type Config struct {
	Name          string
	BrokerBack    string // broker's DEALER-facing back address; this server dials it with a REP socket
	ProxyXSub     string
	ProxyXPub     string
	RegistryAddr  string
	DataDir       string
	SyncEvery     int
}

// New wires every socket and on-disk store for name but does not yet
// start serving; call Run to begin.
func New(ctx context.Context, cfg Config, m *metrics.Server, log *zap.Logger) (*Server, error) {
	channels, err := OpenChannelRegistry(filepath.Join(cfg.DataDir, "registry.json"))
	if err != nil {
		return nil, err
	}
	pubLog, err := logstore.Open(filepath.Join(cfg.DataDir, "publications.jsonl"))
	if err != nil {
		return nil, err
	}
	msgLog, err := logstore.Open(filepath.Join(cfg.DataDir, "messages.jsonl"))
	if err != nil {
		return nil, err
	}

	regc, err := registryclient.Connect(ctx, cfg.RegistryAddr)
	if err != nil {
		return nil, err
	}

	rep := zmq4.NewRep(ctx)
	if err := rep.Dial(cfg.BrokerBack); err != nil {
		return nil, fmt.Errorf("server %s: dial broker back %s: %w", cfg.Name, cfg.BrokerBack, err)
	}

	pub := zmq4.NewPub(ctx)
	if err := pub.Dial(cfg.ProxyXSub); err != nil {
		return nil, fmt.Errorf("server %s: dial proxy xsub %s: %w", cfg.Name, cfg.ProxyXSub, err)
	}

	sub := zmq4.NewSub(ctx)
	if err := sub.Dial(cfg.ProxyXPub); err != nil {
		return nil, fmt.Errorf("server %s: dial proxy xpub %s: %w", cfg.Name, cfg.ProxyXPub, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, wire.TopicReplica); err != nil {
		return nil, fmt.Errorf("server %s: subscribe replica: %w", cfg.Name, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, wire.TopicServers); err != nil {
		return nil, fmt.Errorf("server %s: subscribe servers: %w", cfg.Name, err)
	}

	syncEvery := cfg.SyncEvery
	if syncEvery <= 0 {
		syncEvery = 10
	}

	return &Server{
		Name:      cfg.Name,
		rep:       rep,
		pub:       pub,
		sub:       sub,
		regc:      regc,
		channels:  channels,
		pubLog:    pubLog,
		msgLog:    msgLog,
		m:         m,
		log:       log,
		servers:   map[string]wire.ServerIdentity{},
		syncEvery: syncEvery,
	}, nil
}

// Close releases every socket and file this server owns.
func (s *Server) Close() error {
	_ = s.regc.Close()
	_ = s.rep.Close()
	_ = s.pub.Close()
	_ = s.sub.Close()
	_ = s.pubLog.Close()
	_ = s.msgLog.Close()
	return nil
}
