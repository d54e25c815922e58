package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimBackend_FreeChannelExhaustion(t *testing.T) {
	b := NewSimBackend(2, testLogger())
	asset, err := b.Decode("/sounds/chime.ogg")
	require.NoError(t, err)

	ch1, ok := b.FreeChannel()
	require.True(t, ok)
	require.NoError(t, ch1.PlayLoop(asset))

	ch2, ok := b.FreeChannel()
	require.True(t, ok)
	require.NoError(t, ch2.PlayLoop(asset))

	_, ok = b.FreeChannel()
	assert.False(t, ok, "an exhausted pool yields no channel")

	require.NoError(t, ch1.Stop())
	ch3, ok := b.FreeChannel()
	assert.True(t, ok, "stopped channels return to the pool")
	assert.Same(t, ch1, ch3)
}

func TestSimBackend_DecodeNeverReadsDisk(t *testing.T) {
	b := NewSimBackend(1, testLogger())

	asset, err := b.Decode("/definitely/missing/white_noise.ogg")
	require.NoError(t, err)
	assert.Equal(t, "white_noise.ogg", asset.Name())
}

func TestSimChannel_GainClamped(t *testing.T) {
	b := NewSimBackend(1, testLogger())
	ch := b.Channels()[0]

	ch.SetGain(150)
	assert.Equal(t, 100, ch.Gain())

	ch.SetGain(-5)
	assert.Equal(t, 0, ch.Gain())

	ch.SetGain(42)
	assert.Equal(t, 42, ch.Gain())
}

func TestSimChannel_StopClearsState(t *testing.T) {
	b := NewSimBackend(1, testLogger())
	ch := b.Channels()[0]
	asset, _ := b.Decode("bell.wav")

	require.NoError(t, ch.PlayLoop(asset))
	assert.True(t, ch.Busy())
	assert.Equal(t, asset, ch.Playing())

	require.NoError(t, ch.Stop())
	assert.False(t, ch.Busy())
	assert.Nil(t, ch.Playing())
}

func TestSimBackend_CloseStopsAllChannels(t *testing.T) {
	b := NewSimBackend(3, testLogger())
	asset, _ := b.Decode("bell.wav")
	for _, ch := range b.Channels() {
		require.NoError(t, ch.PlayLoop(asset))
	}

	b.Close()

	for _, ch := range b.Channels() {
		assert.False(t, ch.Busy())
	}
}
