package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReservedTopic(t *testing.T) {
	assert.True(t, IsReservedTopic("replica"))
	assert.True(t, IsReservedTopic("servers"))
	assert.False(t, IsReservedTopic("general"))
	assert.False(t, IsReservedTopic(""))
}

func TestNowISOHasTrailingZ(t *testing.T) {
	ts := NowISO()
	assert.NotEmpty(t, ts)
	assert.Equal(t, byte('Z'), ts[len(ts)-1])
}
