package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/wire"
)

// Bootstrap performs the one-time startup sequence from SPEC_FULL.md
// §4.3: obtain this server's own rank, then fetch the full known-server
// list and compute the initial coordinator view.
func (s *Server) Bootstrap() error {
	rank, registryClock, err := s.regc.Rank(s.Name, s.clk.Value())
	if err != nil {
		return err
	}
	s.clk.Observe(registryClock)

	s.electionMu.Lock()
	s.rank = rank
	s.electionMu.Unlock()

	return s.refreshServers()
}

// refreshServers fetches the registry's current server map and
// re-evaluates the coordinator, publishing an ElectionAnnouncement if
// the cached coordinator changed.
func (s *Server) refreshServers() error {
	servers, registryClock, err := s.regc.List(s.clk.Value())
	if err != nil {
		return err
	}
	s.clk.Observe(registryClock)

	s.electionMu.Lock()
	s.servers = servers
	changed, newCoordinator := s.recomputeCoordinatorLocked()
	coordinatorRank := s.rankOfLocked(newCoordinator)
	s.electionMu.Unlock()

	if s.m != nil {
		s.m.CoordinatorRank.Set(float64(coordinatorRank))
	}
	if changed {
		s.announceElection(newCoordinator)
	}
	return nil
}

// recomputeCoordinatorLocked finds the lowest-ranked name in s.servers
// and compares it against the cached coordinator. Callers must hold
// s.electionMu.
func (s *Server) recomputeCoordinatorLocked() (changed bool, coordinator string) {
	best := ""
	bestRank := int(^uint(0) >> 1) // max int
	for name, ident := range s.servers {
		if ident.Rank < bestRank {
			bestRank = ident.Rank
			best = name
		}
	}
	if best == "" {
		return false, s.coordinator
	}
	if best != s.coordinator {
		s.coordinator = best
		return true, best
	}
	return false, best
}

func (s *Server) rankOfLocked(name string) int {
	if ident, ok := s.servers[name]; ok {
		return ident.Rank
	}
	return 0
}

// Coordinator returns this server's current cached coordinator view.
func (s *Server) Coordinator() string {
	s.electionMu.Lock()
	defer s.electionMu.Unlock()
	return s.coordinator
}

// announceElection publishes an advisory ElectionAnnouncement on the
// reserved "servers" topic. Other servers may adopt it but are not
// required to (SPEC_FULL.md §4.3).
func (s *Server) announceElection(coordinator string) {
	ann := wire.ElectionAnnouncement{
		Coordinator: coordinator,
		Timestamp:   wire.NowISO(),
		Clock:       s.clk.Next(),
	}
	if err := s.publishTopic(wire.TopicServers, ann); err != nil {
		s.log.Warn("election announcement publish failed", zap.Error(err))
		return
	}
	if s.m != nil {
		s.m.ElectionsEmitted.Inc()
	}
	s.log.Info("coordinator changed", zap.String("coordinator", coordinator))
}

// syncAndElect performs the SYNC_EVERY cadence: a Berkeley-style clock
// probe against the registry, then a fresh server list and re-election.
func (s *Server) syncAndElect() {
	if t, registryClock, err := s.regc.ClockProbe(s.clk.Value()); err == nil {
		s.clk.Observe(registryClock)
		_ = t // no physical clock is ever adjusted; the sample is informational only
	} else {
		s.log.Warn("clock probe failed", zap.Error(err))
	}

	if err := s.refreshServers(); err != nil {
		s.log.Warn("server list refresh failed", zap.Error(err))
	}
}

// RunHeartbeat sends a heartbeat to the registry every interval until
// ctx is canceled (SPEC_FULL.md §4.3).
func (s *Server) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.regc.Heartbeat(s.Name, s.clk.Value()); err != nil {
				s.log.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}
