package tractor_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsariola/tractor"
)

func names(l *tractor.TrackList) []string {
	var ret []string
	for _, t := range l.All() {
		ret = append(ret, t.Name())
	}
	return ret
}

func TestTrackListAddRemove(t *testing.T) {
	var l tractor.TrackList
	a, b := tractor.NewTrack("a", tractor.TrackAudio), tractor.NewTrack("b", tractor.TrackMidi)
	assert.True(t, l.Add(a))
	assert.True(t, l.Add(b))
	assert.False(t, l.Add(a), "duplicate")
	assert.False(t, l.Add(nil))
	assert.Equal(t, []string{"a", "b"}, names(&l))

	snapshot := l.Snapshot()
	assert.True(t, l.Remove(a))
	assert.False(t, l.Remove(a), "second removal")
	assert.Equal(t, []string{"b"}, names(&l))
	assert.Len(t, snapshot, 2, "earlier snapshot is not affected")

	assert.Nil(t, l.At(-1))
	assert.Nil(t, l.At(1))
	assert.Equal(t, b, l.At(0))
	assert.Equal(t, -1, l.Index(a))
	assert.False(t, l.Contains(a))

	removed := l.Clear()
	assert.Equal(t, []*tractor.Track{b}, removed)
	assert.Zero(t, l.Len())
}

func TestTrackListMove(t *testing.T) {
	var l tractor.TrackList
	tracks := []*tractor.Track{
		tractor.NewTrack("a", tractor.TrackAudio),
		tractor.NewTrack("b", tractor.TrackAudio),
		tractor.NewTrack("c", tractor.TrackAudio),
	}
	for _, tr := range tracks {
		l.Add(tr)
	}
	a, b, c := tracks[0], tracks[1], tracks[2]

	assert.False(t, l.MoveUp(a), "first track cannot move up")
	assert.False(t, l.MoveDown(c), "last track cannot move down")
	assert.Equal(t, []string{"a", "b", "c"}, names(&l))

	assert.True(t, l.MoveDown(a))
	assert.Equal(t, []string{"b", "a", "c"}, names(&l))
	assert.True(t, l.MoveUp(c))
	assert.Equal(t, []string{"b", "c", "a"}, names(&l))
	assert.True(t, l.MoveDown(c))
	assert.False(t, l.MoveDown(c))
	assert.Equal(t, []string{"b", "a", "c"}, names(&l))

	assert.True(t, l.Move(c, -5), "index is clamped")
	assert.Equal(t, []string{"c", "b", "a"}, names(&l))
	assert.True(t, l.Move(c, 99))
	assert.Equal(t, []string{"b", "a", "c"}, names(&l))
	assert.False(t, l.Move(b, 0))
	assert.False(t, l.Move(tractor.NewTrack("x", tractor.TrackAudio), 0))
}

func TestTrackClips(t *testing.T) {
	tr := tractor.NewTrack("a", tractor.TrackAudio)
	tr.AddClip(tractor.Clip{Start: 2000, Length: 1000})
	tr.AddClip(tractor.Clip{Start: 0, Length: 1000})
	tr.AddClip(tractor.Clip{Start: 5000, Length: 10})
	assert.Equal(t, 3, tr.NumClips())
	assert.True(t, slices.IsSortedFunc(tr.Clips(), func(a, b tractor.Clip) int { return int(a.Start) - int(b.Start) }))
	assert.Equal(t, uint64(5010), tr.Extent())
	assert.Equal(t, 0, tr.ClipIndexAt(999))
	assert.Equal(t, 1, tr.ClipIndexAt(1000))
	assert.Equal(t, 1, tr.ClipIndexAt(2999))
	assert.Equal(t, 3, tr.ClipIndexAt(5010))

	tr.RemoveClip(2)
	tr.RemoveClip(7)
	assert.Equal(t, uint64(3000), tr.Extent())
	_, ok := tr.Clip(2)
	assert.False(t, ok)
	c, ok := tr.Clip(1)
	assert.True(t, ok)
	assert.True(t, c.Contains(2500))
	assert.False(t, c.Contains(3000))
}

func TestTrackTypeText(t *testing.T) {
	var typ tractor.TrackType
	assert.NoError(t, typ.UnmarshalText([]byte("midi")))
	assert.Equal(t, tractor.TrackMidi, typ)
	assert.Error(t, typ.UnmarshalText([]byte("video")))
	b, err := tractor.TrackAudio.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "audio", string(b))
	assert.Equal(t, "none", tractor.TrackNone.String())
}
