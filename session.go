package tractor

import (
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultStabilizeTime is the usual wait after a structural change.
const DefaultStabilizeTime = 100 * time.Millisecond

// Session is the aggregate of an open project: time scale parameters, the
// track list, the session cursors, the MIDI tag pool, the transport and the
// bindings to the audio and MIDI engines.
//
// Two kinds of goroutines use a session. The control side (UI, file loading,
// the CLI) calls everything; the audio engine calls Process once per block.
// Only the transport scalars (playhead, playing flag and the time scale) are
// shared with the audio side and they are published atomically; Process never
// takes a lock. Structural edits are serialized by a mutex on the control
// side.
type Session struct {
	mu sync.Mutex

	name         string
	description  string
	verticalZoom uint16
	soloTracks   int

	length   atomic.Uint64
	scale    atomic.Pointer[TimeScale]
	playhead atomic.Uint64
	playing  atomic.Bool
	open     atomic.Bool

	tracks   TrackList
	cursors  *CursorRegistry
	midiTags *MidiTagPool
	peaks    *PeakFactory

	audio AudioEngine
	midi  MidiEngine
	log   *zap.Logger
}

var _ Processor = (*Session)(nil)

// NewSession returns a closed, cleared session bound to the given engines. A
// nil audio engine is replaced by a virtual clock, a nil MIDI engine by a
// NullMidiEngine and a nil logger by a no-op logger.
func NewSession(audio AudioEngine, midi MidiEngine, log *zap.Logger) *Session {
	if audio == nil {
		audio = NewClockEngine(DefaultSampleRate, 0)
	}
	if midi == nil {
		midi = &NullMidiEngine{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		midiTags: NewMidiTagPool(MaxMidiTags),
		peaks:    NewPeakFactory(DefaultPeakPeriod),
		audio:    audio,
		midi:     midi,
		log:      log,
	}
	s.cursors = NewCursorRegistry(s.TimeScale, &s.tracks)
	audio.SetProcessor(s)
	s.Clear()
	return s
}

// Open binds the audio and MIDI engines under clientName. If either engine
// fails, whatever was opened is closed again, the session stays closed and the
// returned error wraps ErrEngineBinding.
func (s *Session) Open(clientName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open.Load() {
		return nil
	}
	if err := s.audio.Open(clientName); err != nil {
		return fmt.Errorf("opening audio engine as %q: %w: %w", clientName, ErrEngineBinding, err)
	}
	if err := s.midi.Open(clientName); err != nil {
		if cerr := s.audio.Close(); cerr != nil {
			s.log.Warn("closing audio engine after failed open", zap.Error(cerr))
		}
		return fmt.Errorf("opening MIDI engine as %q: %w: %w", clientName, ErrEngineBinding, err)
	}
	if sr := s.audio.SampleRate(); sr > 0 && sr != s.TimeScale().SampleRate() {
		p := s.TimeScale().Params()
		p.SampleRate = sr
		if err := s.updateTimeScale(p); err != nil {
			s.log.Warn("ignoring engine sample rate", zap.Uint32("sampleRate", sr), zap.Error(err))
		}
	}
	s.open.Store(true)
	s.log.Info("session opened", zap.String("client", clientName), zap.Uint32("sampleRate", s.SampleRate()))
	return nil
}

// Close stops the transport and releases the engines. Engines return from
// Close only after their real-time callbacks have drained. Closing a closed
// session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open.Swap(false) {
		return nil
	}
	var errs []error
	if s.playing.Swap(false) {
		pos := s.TimeScale().PositionAt(s.Playhead())
		errs = append(errs, s.midi.SetPlaying(false, pos), s.audio.SetPlaying(false, pos))
	}
	errs = append(errs, s.midi.Close(), s.audio.Close())
	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("session closed with errors", zap.Error(err))
	} else {
		s.log.Info("session closed")
	}
	return err
}

// IsOpen reports whether the engines are bound.
func (s *Session) IsOpen() bool { return s.open.Load() }

// Clear resets every parameter to its default and empties the tracks, cursors,
// MIDI tags and peak cache. It works whether the session is open or not. A
// rolling transport is stopped first.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing.Swap(false) {
		pos := s.TimeScale().PositionAt(s.Playhead())
		if err := errors.Join(s.midi.SetPlaying(false, pos), s.audio.SetPlaying(false, pos)); err != nil {
			s.log.Warn("stopping transport before clear", zap.Error(err))
		}
	}
	s.name = ""
	s.description = ""
	s.verticalZoom = DefaultVerticalZoom
	s.soloTracks = 0
	s.tracks.Clear()
	s.cursors.Clear()
	s.midiTags.Reset()
	s.peaks.Clear()
	s.length.Store(0)
	s.playhead.Store(0)
	ts, _ := NewTimeScale(DefaultTimeScaleParams())
	s.scale.Store(ts)
}

func (s *Session) SessionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) SetSessionName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Session) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description
}

func (s *Session) SetDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = description
}

// SessionLength returns the end of the last clip of all tracks, in frames.
func (s *Session) SessionLength() uint64 { return s.length.Load() }

// UpdateSessionLength recomputes the session length from the tracks and
// clamps the playhead to it. Returns true if the length changed.
func (s *Session) UpdateSessionLength() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSessionLength()
}

func (s *Session) updateSessionLength() bool {
	var length uint64
	for _, t := range s.tracks.All() {
		length = max(length, t.Extent())
	}
	changed := s.length.Swap(length) != length
	if length > 0 && s.playhead.Load() > length {
		s.playhead.Store(length)
	}
	return changed
}

// TimeScale returns the current time scale. The returned value is immutable;
// it stays consistent even if the parameters change while it is in use.
func (s *Session) TimeScale() *TimeScale { return s.scale.Load() }

// UpdateTimeScale republishes the time scale from the current parameters and
// resets the cursors. The setters call it; it is exported for callers that
// want to force the cursors to re-resolve.
func (s *Session) UpdateTimeScale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateTimeScale(s.TimeScale().Params())
}

func (s *Session) updateTimeScale(p TimeScaleParams) error {
	ts, err := NewTimeScale(p)
	if err != nil {
		return err
	}
	s.scale.Store(ts)
	s.cursors.Reset()
	return nil
}

// setParam applies change to a copy of the current parameters and publishes
// the result. Invalid results are rejected and the old scale kept.
func (s *Session) setParam(name string, change func(p *TimeScaleParams)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.TimeScale().Params()
	change(&p)
	if err := s.updateTimeScale(p); err != nil {
		s.log.Debug("rejected parameter", zap.String("param", name), zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) SetSampleRate(sampleRate uint32) error {
	return s.setParam("sampleRate", func(p *TimeScaleParams) { p.SampleRate = sampleRate })
}

func (s *Session) SetTempo(tempo float64) error {
	return s.setParam("tempo", func(p *TimeScaleParams) { p.Tempo = tempo })
}

func (s *Session) SetTicksPerBeat(ticksPerBeat uint16) error {
	return s.setParam("ticksPerBeat", func(p *TimeScaleParams) { p.TicksPerBeat = ticksPerBeat })
}

func (s *Session) SetBeatsPerBar(beatsPerBar uint16) error {
	return s.setParam("beatsPerBar", func(p *TimeScaleParams) { p.BeatsPerBar = beatsPerBar })
}

func (s *Session) SetPixelsPerBeat(pixelsPerBeat uint16) error {
	return s.setParam("pixelsPerBeat", func(p *TimeScaleParams) { p.PixelsPerBeat = pixelsPerBeat })
}

func (s *Session) SetHorizontalZoom(zoom uint16) error {
	return s.setParam("horizontalZoom", func(p *TimeScaleParams) { p.HorizontalZoom = zoom })
}

// SetSnapPerBeat sets the snap divisor; 0 and 1 disable snapping.
func (s *Session) SetSnapPerBeat(snapPerBeat uint16) error {
	return s.setParam("snapPerBeat", func(p *TimeScaleParams) { p.SnapPerBeat = snapPerBeat })
}

// SetVerticalZoom sets the vertical zoom in percent. The vertical zoom does
// not affect the time scale.
func (s *Session) SetVerticalZoom(zoom uint16) error {
	if zoom == 0 {
		return fmt.Errorf("vertical zoom should be > 0: %w", ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verticalZoom = zoom
	return nil
}

func (s *Session) SampleRate() uint32     { return s.TimeScale().SampleRate() }
func (s *Session) Tempo() float64         { return s.TimeScale().Tempo() }
func (s *Session) TicksPerBeat() uint16   { return s.TimeScale().TicksPerBeat() }
func (s *Session) BeatsPerBar() uint16    { return s.TimeScale().BeatsPerBar() }
func (s *Session) PixelsPerBeat() uint16  { return s.TimeScale().PixelsPerBeat() }
func (s *Session) HorizontalZoom() uint16 { return s.TimeScale().HorizontalZoom() }
func (s *Session) SnapPerBeat() uint16    { return s.TimeScale().SnapPerBeat() }

func (s *Session) VerticalZoom() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verticalZoom
}

// BeatIsBar reports whether beat starts a bar.
func (s *Session) BeatIsBar(beat int) bool { return s.TimeScale().BeatIsBar(beat) }

// Tracks iterates over a snapshot of the tracks, in order.
func (s *Session) Tracks() iter.Seq2[int, *Track] { return s.tracks.All() }

// NumTracks returns the number of tracks.
func (s *Session) NumTracks() int { return s.tracks.Len() }

// TrackAt returns the track at index, or nil if out of range.
func (s *Session) TrackAt(index int) *Track { return s.tracks.At(index) }

// TrackIndex returns the position of t, or -1 if it is not in the session.
func (s *Session) TrackIndex(t *Track) int { return s.tracks.Index(t) }

// AddTrack appends t to the session. The session length grows to the track
// extent, an already soloed track is counted, and MIDI tracks get a MIDI tag
// if one is free. Adding a track twice is a no-op.
func (s *Session) AddTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracks.Add(t) {
		return
	}
	if t.IsSolo() {
		s.soloTracks++
	}
	if t.Type() == TrackMidi {
		if _, err := s.midiTags.Acquire(t); err != nil {
			s.log.Warn("MIDI track left untagged", zap.String("track", t.Name()), zap.Error(err))
		}
	}
	if ext := t.Extent(); ext > s.length.Load() {
		s.length.Store(ext)
	}
	s.cursors.Reset()
}

// UpdateTrack re-derives the session length after the clips of t changed.
func (s *Session) UpdateTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracks.Contains(t) {
		return
	}
	s.updateSessionLength()
	s.cursors.Reset()
}

// RemoveTrack removes t from the session, releasing its MIDI tag and its
// share of the solo count. Removing a track that is not in the session is a
// no-op, so undo/redo sequences can remove twice safely.
func (s *Session) RemoveTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracks.Remove(t) {
		return
	}
	if t.IsSolo() {
		s.soloTracks--
	}
	s.midiTags.Release(t)
	s.updateSessionLength()
	s.cursors.Reset()
}

// MoveTrack moves t to index. Returns false if nothing moved.
func (s *Session) MoveTrack(t *Track, index int) bool {
	return s.structural(s.tracks.Move(t, index))
}

// MoveTrackUp swaps t with the track before it; the first track stays put.
func (s *Session) MoveTrackUp(t *Track) bool { return s.structural(s.tracks.MoveUp(t)) }

// MoveTrackDown swaps t with the track after it; the last track stays put.
func (s *Session) MoveTrackDown(t *Track) bool { return s.structural(s.tracks.MoveDown(t)) }

func (s *Session) structural(changed bool) bool {
	if changed {
		s.cursors.Reset()
	}
	return changed
}

// SetTrackSolo sets the solo flag of t and keeps the solo count in step. This
// is the only way the solo flag should change.
func (s *Session) SetTrackSolo(t *Track, solo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.solo.Swap(solo) == solo || !s.tracks.Contains(t) {
		return
	}
	if solo {
		s.soloTracks++
	} else {
		s.soloTracks--
	}
}

// SoloTracks returns the number of soloed tracks in the session.
func (s *Session) SoloTracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.soloTracks
}

// SetTrackMute sets the mute flag of t; the audio thread sees it on its next
// block.
func (s *Session) SetTrackMute(t *Track, mute bool) { t.mute.Store(mute) }

// AcquireMidiTag tags t for MIDI routing. See MidiTagPool.Acquire. Only
// tracks in the session can be tagged.
func (s *Session) AcquireMidiTag(t *Track) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracks.Contains(t) {
		return -1, fmt.Errorf("track %q is not in the session: %w", t.Name(), ErrInvalidParameter)
	}
	return s.midiTags.Acquire(t)
}

// ReleaseMidiTag frees the tag of t, if any.
func (s *Session) ReleaseMidiTag(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.midiTags.Release(t)
}

// MidiTags returns the tag pool, for inspection.
func (s *Session) MidiTags() *MidiTagPool { return s.midiTags }

// CreateSessionCursor returns a new cursor at frame, synchronized to tracks of
// syncType. The caller owns the cursor and should Close it when done.
func (s *Session) CreateSessionCursor(frame uint64, syncType TrackType) *Cursor {
	return s.cursors.Create(frame, syncType)
}

// UnlinkSessionCursor unlinks c; same as c.Close().
func (s *Session) UnlinkSessionCursor(c *Cursor) { s.cursors.Unlink(c) }

// Reset re-resolves every linked session cursor.
func (s *Session) Reset() { s.cursors.Reset() }

// Cursors returns the cursor registry.
func (s *Session) Cursors() *CursorRegistry { return s.cursors }

func (s *Session) AudioEngine() AudioEngine { return s.audio }
func (s *Session) MidiEngine() MidiEngine   { return s.midi }

// AudioPeakFactory returns the peak cache owned by the session.
func (s *Session) AudioPeakFactory() *PeakFactory { return s.peaks }

// IsActivated reports whether the session is open and both engines are
// active.
func (s *Session) IsActivated() bool {
	return s.open.Load() && s.audio.IsActivated() && s.midi.IsActivated()
}

// SetPlaying starts or stops the transport on both engines. Starting needs
// an open session. Stopping resets the session cursors.
func (s *Session) SetPlaying(playing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playing && !s.open.Load() {
		return fmt.Errorf("cannot start playing: %w", ErrSessionClosed)
	}
	if s.playing.Load() == playing {
		return nil
	}
	pos := s.TimeScale().PositionAt(s.Playhead())
	if playing {
		if err := s.audio.SetPlaying(true, pos); err != nil {
			return fmt.Errorf("starting audio engine: %w", err)
		}
		if err := s.midi.SetPlaying(true, pos); err != nil {
			s.audio.SetPlaying(false, pos)
			return fmt.Errorf("starting MIDI engine: %w", err)
		}
		s.playing.Store(true)
		s.log.Debug("transport started", zap.Uint64("frame", pos.Frame))
		return nil
	}
	s.playing.Store(false)
	err := errors.Join(s.midi.SetPlaying(false, pos), s.audio.SetPlaying(false, pos))
	s.cursors.Reset()
	s.log.Debug("transport stopped", zap.Uint64("frame", pos.Frame), zap.Error(err))
	return err
}

// IsPlaying reports whether the transport is rolling.
func (s *Session) IsPlaying() bool { return s.playing.Load() }

// SetPlayhead moves the transport to frame, clamped to the session length
// when the session has one. While stopped, the MIDI outputs are told the new
// song position.
func (s *Session) SetPlayhead(frame uint64) {
	if length := s.length.Load(); length > 0 && frame > length {
		frame = length
	}
	s.playhead.Store(frame)
	if s.open.Load() && !s.playing.Load() {
		if err := s.midi.SongPosition(s.TimeScale().PositionAt(frame)); err != nil {
			s.log.Warn("sending song position", zap.Error(err))
		}
	}
}

// Playhead returns the transport position in frames.
func (s *Session) Playhead() uint64 { return s.playhead.Load() }

// Process is called by the audio engine once per block of frames. While
// playing it advances the playhead and returns the position at the start of
// the block; otherwise ok is false and the engine should render silence. It
// never blocks nor allocates.
func (s *Session) Process(frames int) (pos Position, ok bool) {
	if frames <= 0 || !s.playing.Load() {
		return Position{}, false
	}
	ts := s.scale.Load()
	if ts == nil {
		return Position{}, false
	}
	n := uint64(frames)
	return ts.PositionAt(s.playhead.Add(n) - n), true
}

// Stabilize yields for d so that the audio thread can settle after a
// structural change. It is not a barrier.
func Stabilize(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		runtime.Gosched()
		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		time.Sleep(min(left, 10*time.Millisecond))
	}
}
