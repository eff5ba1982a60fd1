package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatfed/chatfed/internal/wire"
)

func TestRecomputeCoordinatorPicksLowestRank(t *testing.T) {
	s := &Server{servers: map[string]wire.ServerIdentity{
		"b": {Name: "b", Rank: 2},
		"a": {Name: "a", Rank: 1},
		"c": {Name: "c", Rank: 3},
	}}

	changed, coordinator := s.recomputeCoordinatorLocked()
	require.True(t, changed)
	require.Equal(t, "a", coordinator)
}

func TestRecomputeCoordinatorNoChangeWhenStable(t *testing.T) {
	s := &Server{
		coordinator: "a",
		servers: map[string]wire.ServerIdentity{
			"a": {Name: "a", Rank: 1},
			"b": {Name: "b", Rank: 2},
		},
	}

	changed, coordinator := s.recomputeCoordinatorLocked()
	require.False(t, changed)
	require.Equal(t, "a", coordinator)
}

func TestRecomputeCoordinatorDetectsChangeWhenLowerRankJoins(t *testing.T) {
	s := &Server{
		coordinator: "b",
		servers: map[string]wire.ServerIdentity{
			"a": {Name: "a", Rank: 1},
			"b": {Name: "b", Rank: 2},
		},
	}

	changed, coordinator := s.recomputeCoordinatorLocked()
	require.True(t, changed)
	require.Equal(t, "a", coordinator)
}

func TestRecomputeCoordinatorEmptyServersKeepsCached(t *testing.T) {
	s := &Server{coordinator: "a", servers: map[string]wire.ServerIdentity{}}

	changed, coordinator := s.recomputeCoordinatorLocked()
	require.False(t, changed)
	require.Equal(t, "a", coordinator)
}
