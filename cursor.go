package tractor

import (
	"runtime"
	"sync"
	"weak"
)

type (
	// Cursor is a position tracker bound to the session's time base. Each
	// consumer (a renderer, an exporter, the transport display) creates its
	// own with Session.CreateSessionCursor and advances it independently.
	//
	// The caller owns the cursor; the session only keeps a weak reference for
	// broadcasting Reset. Close unlinks the cursor. A cursor that is dropped
	// without closing is unlinked automatically once collected. All methods
	// that move an unlinked cursor are no-ops.
	Cursor struct {
		registry *CursorRegistry
		token    uint64
		cleanup  runtime.Cleanup
		linked   bool

		syncType TrackType
		frame    uint64
		tick     uint64
		clips    []int // per track index of the current clip, -1 if not synced
	}

	// CursorRegistry is the broadcast group of all cursors of a session.
	CursorRegistry struct {
		mu      sync.Mutex
		next    uint64
		cursors map[uint64]weak.Pointer[Cursor]

		scale  func() *TimeScale
		tracks *TrackList
	}
)

// NewCursorRegistry returns a registry resolving cursor positions against the
// time scale returned by scale and the given tracks.
func NewCursorRegistry(scale func() *TimeScale, tracks *TrackList) *CursorRegistry {
	return &CursorRegistry{
		cursors: make(map[uint64]weak.Pointer[Cursor]),
		scale:   scale,
		tracks:  tracks,
	}
}

// Create returns a new linked cursor at frame, synchronized to tracks of
// syncType (TrackNone syncs to all tracks).
func (r *CursorRegistry) Create(frame uint64, syncType TrackType) *Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	c := &Cursor{registry: r, token: r.next, linked: true, syncType: syncType}
	r.cursors[c.token] = weak.Make(c)
	c.cleanup = runtime.AddCleanup(c, r.forget, c.token)
	c.seek(frame)
	return c
}

// Unlink removes c from the registry. Unlinking a cursor twice, or a cursor of
// another registry, is a no-op.
func (r *CursorRegistry) Unlink(c *Cursor) {
	if c == nil || c.registry != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlinkLocked(c)
}

func (r *CursorRegistry) unlinkLocked(c *Cursor) {
	if !c.linked {
		return
	}
	c.linked = false
	c.cleanup.Stop()
	delete(r.cursors, c.token)
}

// forget drops the entry of a collected cursor.
func (r *CursorRegistry) forget(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, token)
}

// Reset tells every linked cursor to re-resolve its position against the
// current tempo and tracks. Cursors are not deallocated.
func (r *CursorRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, wp := range r.cursors {
		c := wp.Value()
		if c == nil {
			delete(r.cursors, token)
			continue
		}
		c.reset()
	}
}

// Clear unlinks every cursor. The cursors stay valid for their owners but no
// longer take part in Reset.
func (r *CursorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, wp := range r.cursors {
		if c := wp.Value(); c != nil {
			r.unlinkLocked(c)
		}
		delete(r.cursors, token)
	}
}

// Len returns the number of registered cursors, including ones that were
// dropped but not collected yet.
func (r *CursorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}

// Close unlinks the cursor from its session. Safe to call more than once.
func (c *Cursor) Close() { c.registry.Unlink(c) }

// Linked reports whether the cursor still takes part in session resets.
func (c *Cursor) Linked() bool {
	c.registry.mu.Lock()
	defer c.registry.mu.Unlock()
	return c.linked
}

func (c *Cursor) SyncType() TrackType { return c.syncType }
func (c *Cursor) Frame() uint64       { return c.frame }
func (c *Cursor) Tick() uint64        { return c.tick }

// ClipIndex returns the index of the current clip of the track at trackIndex,
// as of the last Seek, Advance or Reset. Returns -1 if the track is out of
// range or not synchronized with the cursor.
func (c *Cursor) ClipIndex(trackIndex int) int {
	if trackIndex < 0 || trackIndex >= len(c.clips) {
		return -1
	}
	return c.clips[trackIndex]
}

// Seek moves the cursor to frame.
func (c *Cursor) Seek(frame uint64) {
	if !c.Linked() {
		return
	}
	c.seek(frame)
}

// Advance moves the cursor forward by frames.
func (c *Cursor) Advance(frames uint64) {
	if !c.Linked() {
		return
	}
	c.seek(c.frame + frames)
}

// Reset re-resolves this cursor only; see CursorRegistry.Reset.
func (c *Cursor) Reset() {
	if !c.Linked() {
		return
	}
	c.reset()
}

func (c *Cursor) seek(frame uint64) {
	c.frame = frame
	c.tick = c.registry.scale().TickFromFrame(frame)
	c.resolveClips()
}

// reset keeps a MIDI cursor at the same musical position, so its frame moves
// when the tempo changes; other cursors keep their frame.
func (c *Cursor) reset() {
	ts := c.registry.scale()
	if c.syncType == TrackMidi {
		c.frame = ts.FrameFromTick(c.tick)
	} else {
		c.tick = ts.TickFromFrame(c.frame)
	}
	c.resolveClips()
}

func (c *Cursor) resolveClips() {
	c.clips = c.clips[:0]
	for _, t := range c.registry.tracks.All() {
		if c.syncType != TrackNone && t.Type() != c.syncType {
			c.clips = append(c.clips, -1)
			continue
		}
		c.clips = append(c.clips, t.ClipIndexAt(c.frame))
	}
}
