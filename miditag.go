package tractor

import (
	"fmt"
	"math/bits"
)

// MaxMidiTags is the default number of MIDI tags, one per distinguishable MIDI
// channel.
const MaxMidiTags = 16

// MidiTagPool hands out small integer tags used to tell MIDI tracks apart when
// they share a bus. A tag is held by at most one track and a track holds at
// most one tag. The pool is used from the control thread only.
type MidiTagPool struct {
	held   uint64
	owners []*Track
}

// NewMidiTagPool returns a pool of capacity tags, numbered 0..capacity-1. The
// capacity is clamped to 1..64.
func NewMidiTagPool(capacity int) *MidiTagPool {
	capacity = min(max(capacity, 1), 64)
	return &MidiTagPool{owners: make([]*Track, capacity)}
}

// Cap returns the number of tags in the pool.
func (p *MidiTagPool) Cap() int { return len(p.owners) }

// Len returns the number of tags currently held.
func (p *MidiTagPool) Len() int { return bits.OnesCount64(p.held) }

// Owner returns the track holding tag, or nil.
func (p *MidiTagPool) Owner(tag int) *Track {
	if tag < 0 || tag >= len(p.owners) {
		return nil
	}
	return p.owners[tag]
}

// Acquire assigns the lowest free tag to t and returns it. A track that
// already holds a tag keeps it. When the pool is exhausted, t is left untagged
// and the returned error wraps ErrResourceExhausted; the track is still usable.
func (p *MidiTagPool) Acquire(t *Track) (int, error) {
	if tag, ok := t.MidiTag(); ok && p.Owner(tag) == t {
		return tag, nil
	}
	tag := bits.TrailingZeros64(^p.held)
	if tag >= len(p.owners) {
		t.midiTag = -1
		return 0, fmt.Errorf("all %d MIDI tags are in use: %w", len(p.owners), ErrResourceExhausted)
	}
	p.held |= 1 << tag
	p.owners[tag] = t
	t.midiTag = tag
	return tag, nil
}

// Release frees the tag held by t, if any. Calling it again is a no-op.
func (p *MidiTagPool) Release(t *Track) {
	tag, ok := t.MidiTag()
	if !ok {
		return
	}
	t.midiTag = -1
	if p.Owner(tag) != t {
		return
	}
	p.held &^= 1 << tag
	p.owners[tag] = nil
}

// Reset frees all tags.
func (p *MidiTagPool) Reset() {
	for i, t := range p.owners {
		if t != nil {
			t.midiTag = -1
			p.owners[i] = nil
		}
	}
	p.held = 0
}
