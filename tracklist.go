package tractor

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"
)

// TrackList is the ordered list of tracks of a session. Readers get immutable
// snapshots through an atomic pointer and never lock; writers serialize on a
// mutex and publish a fresh copy, so an iteration in progress never observes a
// structural edit.
type TrackList struct {
	mu     sync.Mutex
	tracks atomic.Pointer[[]*Track]
}

// Snapshot returns the current tracks. The returned slice must not be
// modified.
func (l *TrackList) Snapshot() []*Track {
	if p := l.tracks.Load(); p != nil {
		return *p
	}
	return nil
}

// Len returns the number of tracks.
func (l *TrackList) Len() int { return len(l.Snapshot()) }

// At returns the track at index, or nil if index is out of range.
func (l *TrackList) At(index int) *Track {
	s := l.Snapshot()
	if index < 0 || index >= len(s) {
		return nil
	}
	return s[index]
}

// Index returns the position of t in the list, or -1.
func (l *TrackList) Index(t *Track) int {
	return slices.Index(l.Snapshot(), t)
}

// Contains reports whether t is in the list.
func (l *TrackList) Contains(t *Track) bool { return l.Index(t) >= 0 }

// All iterates over a snapshot of the tracks with their indices.
func (l *TrackList) All() iter.Seq2[int, *Track] {
	return slices.All(l.Snapshot())
}

// Add appends t. Returns false if t is nil or already in the list.
func (l *TrackList) Add(t *Track) bool {
	if t == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.Snapshot()
	if slices.Contains(old, t) {
		return false
	}
	l.publish(append(slices.Clip(old), t))
	return true
}

// Remove removes t. Returns false, and does nothing, if t is not in the list.
func (l *TrackList) Remove(t *Track) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.Snapshot()
	i := slices.Index(old, t)
	if i < 0 {
		return false
	}
	l.publish(slices.Delete(slices.Clone(old), i, i+1))
	return true
}

// Move moves t to index, shifting the tracks in between. The index is clamped
// to the valid range. Returns false if t is not in the list or did not move.
func (l *TrackList) Move(t *Track, index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.Snapshot()
	from := slices.Index(old, t)
	if from < 0 {
		return false
	}
	to := min(max(index, 0), len(old)-1)
	if to == from {
		return false
	}
	s := slices.Delete(slices.Clone(old), from, from+1)
	l.publish(slices.Insert(s, to, t))
	return true
}

// MoveUp swaps t with the track before it. Moving the first track is a no-op.
func (l *TrackList) MoveUp(t *Track) bool {
	i := l.Index(t)
	if i <= 0 {
		return false
	}
	return l.Move(t, i-1)
}

// MoveDown swaps t with the track after it. Moving the last track is a no-op.
func (l *TrackList) MoveDown(t *Track) bool {
	i := l.Index(t)
	if i < 0 || i >= l.Len()-1 {
		return false
	}
	return l.Move(t, i+1)
}

// Clear removes all tracks and returns the tracks that were removed.
func (l *TrackList) Clear() []*Track {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.Snapshot()
	l.publish(nil)
	return old
}

func (l *TrackList) publish(s []*Track) {
	l.tracks.Store(&s)
}
