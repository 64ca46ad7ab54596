package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnparseableURL(t *testing.T) {
	_, err := New("bad", "not-a-valid-shoutrrr-url")
	assert.Error(t, err)
}

func TestNewAndRegistryGet(t *testing.T) {
	ch, err := New("discord-alerts", "discord://token@channelid")
	require.NoError(t, err)
	assert.Equal(t, "discord-alerts", ch.Name())

	reg := NewRegistry([]*Channel{ch})
	got, ok := reg.Get("discord-alerts")
	require.True(t, ok)
	assert.Equal(t, "discord-alerts", got.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryGetOnEmptyRegistry(t *testing.T) {
	reg := NewRegistry(nil)
	_, ok := reg.Get("anything")
	assert.False(t, ok)
}
