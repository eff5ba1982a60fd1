// Package registry implements the reference/registry service: rank
// assignment, liveness tracking, and the Berkeley-style clock probe.
// SPEC_FULL.md §4.4.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chatfed/chatfed/internal/clock"
	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/wire"
)

// State is the registry's mapping name -> ServerIdentity, persisted to a
// single JSON document on every mutating call. It never shrinks: dead
// servers remain with a stale LastBeat (SPEC_FULL.md §9 — election cannot
// recover from losing the lowest-ranked server without an operator
// editing the data file offline).
type State struct {
	mu       sync.Mutex
	path     string
	servers  map[string]*wire.ServerIdentity
	nextRank int
	clock    clock.Logical
	m        *metrics.Registry
}

// Open loads path if it exists, or starts with an empty map.
func Open(path string, m *metrics.Registry) (*State, error) {
	s := &State{path: path, servers: map[string]*wire.ServerIdentity{}, nextRank: 1, m: m}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var loaded map[string]*wire.ServerIdentity
		if jsonErr := json.Unmarshal(data, &loaded); jsonErr != nil {
			// a torn write is tolerated: start empty rather than fail to boot.
			loaded = nil
		}
		for name, ident := range loaded {
			s.servers[name] = ident
			if ident.Rank >= s.nextRank {
				s.nextRank = ident.Rank + 1
			}
		}
	case os.IsNotExist(err):
		// first start: nothing to load.
	default:
		return nil, fmt.Errorf("read registry state %s: %w", path, err)
	}

	if s.m != nil {
		s.m.RegisteredServers.Set(float64(len(s.servers)))
	}
	return s, nil
}

// Rank assigns (or returns the existing) rank for name. Idempotent.
func (s *State) Rank(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.servers[name]
	if !ok {
		ident = &wire.ServerIdentity{Name: name, Rank: s.nextRank, LastBeat: float64(time.Now().Unix())}
		s.servers[name] = ident
		s.nextRank++
		s.persistLocked()
		if s.m != nil {
			s.m.RegisteredServers.Set(float64(len(s.servers)))
		}
	}
	return ident.Rank
}

// List returns a snapshot copy of the full server map.
func (s *State) List() map[string]wire.ServerIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]wire.ServerIdentity, len(s.servers))
	for name, ident := range s.servers {
		out[name] = *ident
	}
	return out
}

// Heartbeat updates last_beat for an already-known name. Unknown names are
// ignored — no auto-registration on heartbeat.
func (s *State) Heartbeat(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.servers[name]
	if !ok {
		return
	}
	ident.LastBeat = float64(time.Now().Unix())
	s.persistLocked()
}

// NextClock folds a remote Lamport clock value into the registry's own clock
// and returns the new value, for stamping on the reply.
func (s *State) NextClock(remote uint64) uint64 {
	return s.clock.Observe(remote)
}

// persistLocked rewrites the full map via a temp-file-then-rename, which
// narrows but does not eliminate the torn-write hazard SPEC_FULL.md
// accepts as a known limitation.
func (s *State) persistLocked() {
	data, err := json.MarshalIndent(s.servers, "", "  ")
	if err != nil {
		return
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path)
}
