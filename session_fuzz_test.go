package tractor_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/vsariola/tractor"
)

type sessionFuzzState struct {
	session *tractor.Session
	tracks  []*tractor.Track
	cursors []*tractor.Cursor
	file    []byte
}

func (s *sessionFuzzState) track(seed int) *tractor.Track {
	if len(s.tracks) == 0 {
		return tractor.NewTrack("orphan", tractor.TrackMidi)
	}
	return s.tracks[seed%len(s.tracks)]
}

func (s *sessionFuzzState) Iterate(yield func(string, func(p string, t *testing.T)) bool, seed int) {
	// Tracks
	yield("AddAudioTrack", func(p string, t *testing.T) {
		tr := tractor.NewTrack(fmt.Sprint(seed), tractor.TrackAudio)
		tr.AddClip(tractor.Clip{Start: uint64(seed % 100000), Length: uint64(seed%5000 + 1)})
		s.tracks = append(s.tracks, tr)
		s.session.AddTrack(tr)
	})
	yield("AddMidiTrack", func(p string, t *testing.T) {
		tr := tractor.NewTrack(fmt.Sprint(seed), tractor.TrackMidi)
		s.tracks = append(s.tracks, tr)
		s.session.AddTrack(tr)
	})
	yield("ReAddTrack", func(p string, t *testing.T) {
		s.session.AddTrack(s.track(seed))
	})
	yield("RemoveTrack", func(p string, t *testing.T) {
		s.session.RemoveTrack(s.track(seed))
	})
	yield("SetTrackSolo", func(p string, t *testing.T) {
		s.session.SetTrackSolo(s.track(seed), seed%2 == 0)
	})
	yield("SetTrackMute", func(p string, t *testing.T) {
		s.session.SetTrackMute(s.track(seed), seed%2 == 0)
	})
	yield("MoveTrackUp", func(p string, t *testing.T) {
		s.session.MoveTrackUp(s.track(seed))
	})
	yield("MoveTrackDown", func(p string, t *testing.T) {
		s.session.MoveTrackDown(s.track(seed))
	})
	yield("AddClip", func(p string, t *testing.T) {
		tr := s.track(seed)
		tr.AddClip(tractor.Clip{Start: uint64(seed % 300000), Length: 1000})
		s.session.UpdateTrack(tr)
	})
	yield("AcquireMidiTag", func(p string, t *testing.T) {
		s.session.AcquireMidiTag(s.track(seed))
	})
	yield("ReleaseMidiTag", func(p string, t *testing.T) {
		s.session.ReleaseMidiTag(s.track(seed))
	})
	// Parameters
	yield("SetTempo", func(p string, t *testing.T) {
		s.session.SetTempo(float64(seed%400) - 10)
	})
	yield("SetSampleRate", func(p string, t *testing.T) {
		s.session.SetSampleRate(uint32(seed % 200000))
	})
	yield("SetTicksPerBeat", func(p string, t *testing.T) {
		s.session.SetTicksPerBeat(uint16(seed % 1000))
	})
	yield("SetSnapPerBeat", func(p string, t *testing.T) {
		s.session.SetSnapPerBeat(uint16(seed % 32))
	})
	// Transport
	yield("SetPlaying", func(p string, t *testing.T) {
		s.session.SetPlaying(seed%2 == 0)
	})
	yield("SetPlayhead", func(p string, t *testing.T) {
		s.session.SetPlayhead(uint64(seed))
		if l := s.session.SessionLength(); l > 0 && !s.session.IsPlaying() && s.session.Playhead() > l {
			t.Errorf("Path: %s playhead %d past session length %d", p, s.session.Playhead(), l)
		}
	})
	// Cursors
	yield("CreateCursor", func(p string, t *testing.T) {
		s.cursors = append(s.cursors, s.session.CreateSessionCursor(uint64(seed), tractor.TrackType(seed%3)))
	})
	yield("CloseCursor", func(p string, t *testing.T) {
		if len(s.cursors) > 0 {
			s.cursors[seed%len(s.cursors)].Close()
		}
	})
	yield("AdvanceCursor", func(p string, t *testing.T) {
		if len(s.cursors) > 0 {
			s.cursors[seed%len(s.cursors)].Advance(uint64(seed % 10000))
		}
	})
	yield("Reset", func(p string, t *testing.T) {
		s.session.Reset()
	})
	yield("Clear", func(p string, t *testing.T) {
		s.session.Clear()
	})
	// Documents
	yield("Write", func(p string, t *testing.T) {
		var buf bytes.Buffer
		if err := tractor.NewDocument("fuzz.yml", nil).Write(&buf, s.session); err != nil {
			t.Errorf("Path: %s write failed: %v", p, err)
		}
		s.file = buf.Bytes()
	})
	if s.file != nil {
		yield("Read", func(p string, t *testing.T) {
			if err := tractor.NewDocument("fuzz.yml", nil).Read(bytes.NewReader(s.file), s.session); err != nil {
				t.Errorf("Path: %s read failed: %v", p, err)
			}
		})
	}
}

func (s *sessionFuzzState) check(p string, t *testing.T) {
	solo := 0
	tags := map[int]bool{}
	for _, tr := range s.session.Tracks() {
		if tr.IsSolo() {
			solo++
		}
		if tag, ok := tr.MidiTag(); ok {
			if tags[tag] {
				t.Errorf("Path: %s MIDI tag %d held twice", p, tag)
			}
			tags[tag] = true
		}
	}
	if got := s.session.SoloTracks(); got != solo {
		t.Errorf("Path: %s solo count %d, want %d", p, got, solo)
	}
	if n := s.session.MidiTags().Len(); n != len(tags) {
		t.Errorf("Path: %s %d MIDI tags held, %d by session tracks", p, n, len(tags))
	}
	var length uint64
	for _, tr := range s.session.Tracks() {
		length = max(length, tr.Extent())
	}
	if got := s.session.SessionLength(); got != length {
		t.Errorf("Path: %s session length %d, want %d", p, got, length)
	}
}

func FuzzSession(f *testing.F) {
	seed := make([]byte, 1)
	for i := range seed {
		seed[i] = byte(i)
	}
	f.Add(seed)
	f.Fuzz(func(t *testing.T, slice []byte) {
		reader := bytes.NewReader(slice)
		clock := tractor.NewClockEngine(44100, 64)
		session := tractor.NewSession(clock, nil, nil)
		if err := session.Open("fuzz"); err != nil {
			t.Fatal(err)
		}
		defer session.Close()
		state := sessionFuzzState{session: session}
		totalPath := ""
		for m, err := binary.ReadVarint(reader); err == nil; m, err = binary.ReadVarint(reader) {
			seed := int(m & 0x7fffffff)
			count := 0
			state.Iterate(func(n string, f func(p string, t *testing.T)) bool {
				count++
				return true
			}, seed)
			index := seed % count
			state.Iterate(func(n string, f func(p string, t *testing.T)) bool {
				if index == 0 {
					totalPath += n + ". "
					f(totalPath, t)
				}
				index--
				return index > 0
			}, seed)
			state.check(totalPath, t)
		}
	})
}
