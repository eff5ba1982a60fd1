package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenChannelRegistrySeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	cr, err := OpenChannelRegistry(path)
	require.NoError(t, err)
	require.Equal(t, []string{"dev", "general", "random"}, cr.Channels())
	require.Empty(t, cr.Users())
}

func TestChannelRegistryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	cr1, err := OpenChannelRegistry(path)
	require.NoError(t, err)
	require.NoError(t, cr1.AddChannel("eng"))
	cr1.AddUser("alice")

	cr2, err := OpenChannelRegistry(path)
	require.NoError(t, err)
	require.True(t, cr2.HasChannel("eng"))
	require.True(t, cr2.HasUser("alice"))
}

func TestAddChannelRejectsReservedAndDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	cr, err := OpenChannelRegistry(path)
	require.NoError(t, err)

	require.ErrorIs(t, cr.AddChannel("servers"), ErrReservedTopic)
	require.ErrorIs(t, cr.AddChannel("general"), ErrChannelExists)
}

func TestHasUserAllowsAnyoneWhenSetIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	cr, err := OpenChannelRegistry(path)
	require.NoError(t, err)
	require.True(t, cr.HasUser("nobody-registered-yet"))

	cr.AddUser("alice")
	require.False(t, cr.HasUser("bob"))
	require.True(t, cr.HasUser("alice"))
}
