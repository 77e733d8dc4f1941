package tractor_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsariola/tractor"
)

func TestMidiTagPoolExhaustion(t *testing.T) {
	p := tractor.NewMidiTagPool(tractor.MaxMidiTags)
	tracks := make([]*tractor.Track, tractor.MaxMidiTags+1)
	for i := range tracks {
		tracks[i] = tractor.NewTrack(fmt.Sprint(i), tractor.TrackMidi)
	}
	for i, tr := range tracks[:tractor.MaxMidiTags] {
		tag, err := p.Acquire(tr)
		require.NoError(t, err)
		assert.Equal(t, i, tag)
	}
	last := tracks[tractor.MaxMidiTags]
	_, err := p.Acquire(last)
	assert.True(t, errors.Is(err, tractor.ErrResourceExhausted))
	_, ok := last.MidiTag()
	assert.False(t, ok)
	assert.Equal(t, tractor.MaxMidiTags, p.Len())

	p.Release(tracks[5])
	p.Release(tracks[5])
	assert.Equal(t, tractor.MaxMidiTags-1, p.Len())
	tag, err := p.Acquire(last)
	require.NoError(t, err)
	assert.Equal(t, 5, tag, "lowest free tag is reused")
	assert.Equal(t, last, p.Owner(5))
}

func TestMidiTagPoolKeepsTag(t *testing.T) {
	p := tractor.NewMidiTagPool(4)
	a, b := tractor.NewTrack("a", tractor.TrackMidi), tractor.NewTrack("b", tractor.TrackMidi)
	p.Acquire(a)
	p.Acquire(b)
	tag, err := p.Acquire(b)
	require.NoError(t, err)
	assert.Equal(t, 1, tag)
	assert.Equal(t, 2, p.Len())

	p.Reset()
	assert.Zero(t, p.Len())
	_, ok := a.MidiTag()
	assert.False(t, ok)
	assert.Nil(t, p.Owner(0))
	assert.Nil(t, p.Owner(-1))
}

func TestMidiTagPoolCapacity(t *testing.T) {
	assert.Equal(t, 1, tractor.NewMidiTagPool(0).Cap())
	p := tractor.NewMidiTagPool(100)
	require.Equal(t, 64, p.Cap())
	for i := range 64 {
		_, err := p.Acquire(tractor.NewTrack(fmt.Sprint(i), tractor.TrackMidi))
		require.NoError(t, err)
	}
	_, err := p.Acquire(tractor.NewTrack("extra", tractor.TrackMidi))
	assert.True(t, errors.Is(err, tractor.ErrResourceExhausted))
}
