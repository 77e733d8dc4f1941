package tractor

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

type (
	// TrackType tells whether a track carries audio or MIDI. TrackNone is a
	// disabled track; cursors created with TrackNone sync to every track.
	TrackType int

	// Clip is a region of a track, in frames.
	Clip struct {
		Name   string `yaml:",omitempty"`
		Start  uint64
		Length uint64
	}

	// Track is a single lane of the session. The session's TrackList owns the
	// ordering; the track owns its clips. Mute and solo are atomic since the
	// audio thread reads them while rendering, but they should be changed only
	// through Session.SetTrackMute and Session.SetTrackSolo so that the solo
	// count stays correct.
	Track struct {
		id          uuid.UUID
		name        string
		typ         TrackType
		midiChannel uint8
		clips       []Clip

		mute atomic.Bool
		solo atomic.Bool

		midiTag int // -1 when the track holds no tag
	}
)

const (
	TrackNone TrackType = iota
	TrackAudio
	TrackMidi
)

func (t TrackType) String() string {
	switch t {
	case TrackAudio:
		return "audio"
	case TrackMidi:
		return "midi"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler, so that track types show up
// as words in the session documents.
func (t TrackType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TrackType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "audio":
		*t = TrackAudio
	case "midi":
		*t = TrackMidi
	case "none", "":
		*t = TrackNone
	default:
		return fmt.Errorf("unknown track type %q", string(b))
	}
	return nil
}

// End returns the first frame after the clip.
func (c Clip) End() uint64 { return c.Start + c.Length }

// Contains reports whether frame lies within the clip.
func (c Clip) Contains(frame uint64) bool { return frame >= c.Start && frame < c.End() }

// NewTrack returns an empty, unregistered track with a fresh identity.
func NewTrack(name string, typ TrackType) *Track {
	return &Track{id: uuid.New(), name: name, typ: typ, midiTag: -1}
}

func (t *Track) ID() uuid.UUID           { return t.id }
func (t *Track) Name() string            { return t.name }
func (t *Track) SetName(name string)     { t.name = name }
func (t *Track) Type() TrackType         { return t.typ }
func (t *Track) MidiChannel() uint8      { return t.midiChannel }
func (t *Track) SetMidiChannel(ch uint8) { t.midiChannel = ch & 0x0f }
func (t *Track) IsMute() bool            { return t.mute.Load() }
func (t *Track) IsSolo() bool            { return t.solo.Load() }

// MidiTag returns the MIDI tag held by the track, if any.
func (t *Track) MidiTag() (tag int, ok bool) {
	if t.midiTag < 0 {
		return 0, false
	}
	return t.midiTag, true
}

// Clips returns a copy of the clips, ordered by start frame.
func (t *Track) Clips() []Clip {
	return slices.Clone(t.clips)
}

// Clip returns the clip at index; ok is false if the index is out of range.
func (t *Track) Clip(index int) (c Clip, ok bool) {
	if index < 0 || index >= len(t.clips) {
		return Clip{}, false
	}
	return t.clips[index], true
}

// NumClips returns the number of clips on the track.
func (t *Track) NumClips() int { return len(t.clips) }

// AddClip inserts the clip keeping the clips ordered by start frame. Call
// Session.UpdateTrack afterwards so the session length follows.
func (t *Track) AddClip(c Clip) {
	i, _ := slices.BinarySearchFunc(t.clips, c.Start, func(e Clip, start uint64) int {
		switch {
		case e.Start < start:
			return -1
		case e.Start > start:
			return 1
		}
		return 0
	})
	t.clips = slices.Insert(t.clips, i, c)
}

// RemoveClip removes the clip at index; out of range indices are ignored.
func (t *Track) RemoveClip(index int) {
	if index < 0 || index >= len(t.clips) {
		return
	}
	t.clips = slices.Delete(t.clips, index, index+1)
}

// Extent returns the frame where the last clip of the track ends.
func (t *Track) Extent() uint64 {
	var ret uint64
	for _, c := range t.clips {
		ret = max(ret, c.End())
	}
	return ret
}

// ClipIndexAt returns the index of the first clip that ends after frame, i.e.
// the clip playing at frame or the next one to play. Returns NumClips() if no
// such clip exists.
func (t *Track) ClipIndexAt(frame uint64) int {
	for i, c := range t.clips {
		if c.End() > frame {
			return i
		}
	}
	return len(t.clips)
}
