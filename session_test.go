package tractor_test

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsariola/tractor"
)

// fakeEngine records the calls of the session. It serves as both the audio
// and the MIDI engine.
type fakeEngine struct {
	openErr    error
	sampleRate uint32
	active     bool
	opens      int
	closes     int
	playing    []bool
	positions  []uint16
	processor  tractor.Processor
}

func (e *fakeEngine) Open(string) error {
	e.opens++
	if e.openErr != nil {
		return e.openErr
	}
	e.active = true
	return nil
}

func (e *fakeEngine) Close() error {
	e.closes++
	e.active = false
	return nil
}

func (e *fakeEngine) IsActivated() bool                { return e.active }
func (e *fakeEngine) SampleRate() uint32               { return e.sampleRate }
func (e *fakeEngine) SetProcessor(p tractor.Processor) { e.processor = p }

func (e *fakeEngine) SongPosition(pos tractor.Position) error {
	e.positions = append(e.positions, pos.SongPosition)
	return nil
}

func (e *fakeEngine) SetPlaying(playing bool, pos tractor.Position) error {
	e.playing = append(e.playing, playing)
	return nil
}

func TestSessionDefaults(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	assert.Equal(t, uint32(44100), s.SampleRate())
	assert.Equal(t, 120.0, s.Tempo())
	assert.Equal(t, uint16(480), s.TicksPerBeat())
	assert.Equal(t, uint16(4), s.BeatsPerBar())
	assert.Equal(t, uint16(32), s.PixelsPerBeat())
	assert.Equal(t, uint16(100), s.HorizontalZoom())
	assert.Equal(t, uint16(100), s.VerticalZoom())
	assert.Equal(t, uint16(0), s.SnapPerBeat())
	assert.Zero(t, s.NumTracks())
	assert.Zero(t, s.SessionLength())
	assert.False(t, s.IsOpen())
	assert.False(t, s.IsPlaying())
	assert.False(t, s.IsActivated())
	assert.NotNil(t, s.AudioPeakFactory())
	assert.True(t, s.BeatIsBar(8))
}

func TestSessionSettersRejectInvalid(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	for name, err := range map[string]error{
		"zero tempo":              s.SetTempo(0),
		"negative tempo":          s.SetTempo(-1),
		"NaN tempo":               s.SetTempo(math.NaN()),
		"zero sample rate":        s.SetSampleRate(0),
		"zero ticks":              s.SetTicksPerBeat(0),
		"ticks finer than frames": s.SetTicksPerBeat(60000),
		"zero beats":              s.SetBeatsPerBar(0),
		"zero pixels":             s.SetPixelsPerBeat(0),
		"zero zoom":               s.SetHorizontalZoom(0),
		"zero vertical":           s.SetVerticalZoom(0),
	} {
		assert.True(t, errors.Is(err, tractor.ErrInvalidParameter), "%s: %v", name, err)
	}
	assert.Equal(t, 120.0, s.Tempo())
	assert.Equal(t, uint32(44100), s.SampleRate())
	assert.Equal(t, uint16(100), s.VerticalZoom())

	require.NoError(t, s.SetTempo(90))
	require.NoError(t, s.SetSnapPerBeat(0))
	require.NoError(t, s.SetSnapPerBeat(8))
	assert.Equal(t, 90.0, s.Tempo())
	assert.Equal(t, 29400.0, s.TimeScale().FramesPerBeat())
}

func TestSessionOpenFailure(t *testing.T) {
	audio := &fakeEngine{openErr: errors.New("no device")}
	midi := &fakeEngine{}
	s := tractor.NewSession(audio, midi, nil)
	err := s.Open("test")
	assert.True(t, errors.Is(err, tractor.ErrEngineBinding))
	assert.False(t, s.IsOpen())
	assert.Zero(t, midi.opens)

	audio.openErr = nil
	midi.openErr = errors.New("no MIDI")
	err = s.Open("test")
	assert.True(t, errors.Is(err, tractor.ErrEngineBinding))
	assert.False(t, s.IsOpen())
	assert.Equal(t, 1, audio.closes, "audio engine is closed again")
	assert.False(t, audio.active)

	err = s.SetPlaying(true)
	assert.True(t, errors.Is(err, tractor.ErrSessionClosed))
	assert.False(t, s.IsPlaying())
}

func TestSessionOpenAdoptsSampleRate(t *testing.T) {
	audio := &fakeEngine{sampleRate: 48000}
	s := tractor.NewSession(audio, &fakeEngine{}, nil)
	require.NoError(t, s.Open("test"))
	defer s.Close()
	assert.Equal(t, uint32(48000), s.SampleRate())
	assert.True(t, s.IsActivated())
	assert.Equal(t, s, audio.processor)
}

func TestSessionTransport(t *testing.T) {
	audio, midi := &fakeEngine{}, &fakeEngine{}
	s := tractor.NewSession(audio, midi, nil)
	require.NoError(t, s.Open("test"))

	_, ok := s.Process(512)
	assert.False(t, ok, "stopped")

	s.SetPlayhead(88200)
	assert.Equal(t, []uint16{16}, midi.positions, "song position is sent while stopped")

	require.NoError(t, s.SetPlaying(true))
	require.NoError(t, s.SetPlaying(true))
	assert.Equal(t, []bool{true}, midi.playing)
	pos, ok := s.Process(512)
	assert.True(t, ok)
	assert.Equal(t, uint64(88200), pos.Frame)
	assert.Equal(t, 4, pos.Beat)
	pos, _ = s.Process(512)
	assert.Equal(t, uint64(88712), pos.Frame)
	assert.Equal(t, uint64(89224), s.Playhead())
	_, ok = s.Process(0)
	assert.False(t, ok)

	require.NoError(t, s.SetPlaying(false))
	assert.Equal(t, []bool{true, false}, midi.playing)
	assert.Equal(t, []bool{true, false}, audio.playing)
	_, ok = s.Process(512)
	assert.False(t, ok)

	require.NoError(t, s.SetPlaying(true))
	require.NoError(t, s.Close())
	assert.False(t, s.IsPlaying(), "close stops the transport")
	assert.Equal(t, 1, audio.closes)
	assert.Equal(t, 1, midi.closes)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, audio.closes)
}

func TestSessionSoloCount(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	a := tractor.NewTrack("a", tractor.TrackAudio)
	b := tractor.NewTrack("b", tractor.TrackAudio)
	c := tractor.NewTrack("c", tractor.TrackAudio)
	s.AddTrack(a)
	s.AddTrack(b)

	s.SetTrackSolo(a, true)
	s.SetTrackSolo(a, true)
	s.SetTrackSolo(b, true)
	assert.Equal(t, 2, s.SoloTracks())
	s.SetTrackSolo(b, false)
	assert.Equal(t, 1, s.SoloTracks())

	s.SetTrackSolo(c, true)
	assert.Equal(t, 1, s.SoloTracks(), "unregistered track is not counted")
	s.AddTrack(c)
	assert.Equal(t, 2, s.SoloTracks(), "soloed track is counted when added")

	s.RemoveTrack(a)
	s.RemoveTrack(a)
	assert.Equal(t, 1, s.SoloTracks())
	assert.Equal(t, 2, s.NumTracks())

	s.SetTrackMute(b, true)
	assert.True(t, b.IsMute())
}

func TestSessionLength(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	a := tractor.NewTrack("a", tractor.TrackAudio)
	a.AddClip(tractor.Clip{Start: 0, Length: 1000})
	s.AddTrack(a)
	assert.Equal(t, uint64(1000), s.SessionLength())

	b := tractor.NewTrack("b", tractor.TrackAudio)
	s.AddTrack(b)
	b.AddClip(tractor.Clip{Start: 5000, Length: 5000})
	assert.Equal(t, uint64(1000), s.SessionLength())
	s.UpdateTrack(b)
	assert.Equal(t, uint64(10000), s.SessionLength())

	s.SetPlayhead(20000)
	assert.Equal(t, uint64(10000), s.Playhead(), "clamped to the session length")
	s.RemoveTrack(b)
	assert.Equal(t, uint64(1000), s.SessionLength())
	assert.Equal(t, uint64(1000), s.Playhead())
	assert.False(t, s.UpdateSessionLength())
}

func TestSessionMidiTags(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	var tracks []*tractor.Track
	for i := range tractor.MaxMidiTags + 1 {
		tr := tractor.NewTrack(fmt.Sprint(i), tractor.TrackMidi)
		s.AddTrack(tr)
		tracks = append(tracks, tr)
	}
	assert.Equal(t, tractor.MaxMidiTags+1, s.NumTracks(), "track added without a tag")
	last := tracks[tractor.MaxMidiTags]
	_, ok := last.MidiTag()
	assert.False(t, ok)
	_, err := s.AcquireMidiTag(last)
	assert.True(t, errors.Is(err, tractor.ErrResourceExhausted))

	s.RemoveTrack(tracks[3])
	tag, err := s.AcquireMidiTag(last)
	require.NoError(t, err)
	assert.Equal(t, 3, tag)
	s.ReleaseMidiTag(last)
	assert.Equal(t, tractor.MaxMidiTags-1, s.MidiTags().Len())

	audio := tractor.NewTrack("audio", tractor.TrackAudio)
	s.AddTrack(audio)
	_, ok = audio.MidiTag()
	assert.False(t, ok)
}

func TestSessionMidiTagsOnlyForSessionTracks(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	orphan := tractor.NewTrack("orphan", tractor.TrackMidi)
	_, err := s.AcquireMidiTag(orphan)
	assert.True(t, errors.Is(err, tractor.ErrInvalidParameter))
	_, ok := orphan.MidiTag()
	assert.False(t, ok)
	assert.Zero(t, s.MidiTags().Len())

	tr := tractor.NewTrack("a", tractor.TrackMidi)
	s.AddTrack(tr)
	s.RemoveTrack(tr)
	_, err = s.AcquireMidiTag(tr)
	assert.Error(t, err, "removed tracks cannot be tagged")
	assert.Zero(t, s.MidiTags().Len())
}

func TestSessionClear(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	s.SetSessionName("name")
	s.SetDescription("desc")
	require.NoError(t, s.SetTempo(150))
	require.NoError(t, s.SetVerticalZoom(50))
	tr := tractor.NewTrack("a", tractor.TrackMidi)
	tr.AddClip(tractor.Clip{Length: 100})
	s.AddTrack(tr)
	s.SetTrackSolo(tr, true)
	s.SetPlayhead(50)
	s.AudioPeakFactory().Peaks("x", []float32{1}, 1)

	s.Clear()
	assert.Equal(t, "", s.SessionName())
	assert.Equal(t, "", s.Description())
	assert.Equal(t, 120.0, s.Tempo())
	assert.Equal(t, uint16(100), s.VerticalZoom())
	assert.Zero(t, s.NumTracks())
	assert.Zero(t, s.SoloTracks())
	assert.Zero(t, s.SessionLength())
	assert.Zero(t, s.Playhead())
	assert.Zero(t, s.MidiTags().Len())
	assert.Zero(t, s.AudioPeakFactory().Len())
}

func TestSessionClearStopsTransport(t *testing.T) {
	audio, midi := &fakeEngine{}, &fakeEngine{}
	s := tractor.NewSession(audio, midi, nil)
	require.NoError(t, s.Open("test"))
	require.NoError(t, s.SetPlaying(true))
	s.Clear()
	assert.False(t, s.IsPlaying())
	assert.Equal(t, []bool{true, false}, audio.playing)
	assert.Equal(t, []bool{true, false}, midi.playing)
	pos, ok := s.Process(64)
	assert.False(t, ok, "no transport after clear")
	assert.Zero(t, pos.Frame)
	assert.Zero(t, s.Playhead())
	assert.True(t, s.IsOpen())
}

func TestSessionMoveTrack(t *testing.T) {
	s := tractor.NewSession(nil, nil, nil)
	a, b := tractor.NewTrack("a", tractor.TrackAudio), tractor.NewTrack("b", tractor.TrackAudio)
	s.AddTrack(a)
	s.AddTrack(b)
	assert.False(t, s.MoveTrackUp(a))
	assert.False(t, s.MoveTrackDown(b))
	assert.True(t, s.MoveTrackDown(a))
	assert.Equal(t, 1, s.TrackIndex(a))
	assert.Equal(t, b, s.TrackAt(0))
	assert.True(t, s.MoveTrack(a, 0))
	assert.Equal(t, a, s.TrackAt(0))
	assert.Nil(t, s.TrackAt(2))
}

func TestSessionWithClockEngine(t *testing.T) {
	clock := tractor.NewClockEngine(44100, 441)
	s := tractor.NewSession(clock, nil, nil)
	require.NoError(t, s.Open("clock"))
	assert.True(t, s.IsActivated())
	require.NoError(t, s.SetPlaying(true))
	require.Eventually(t, func() bool { return s.Playhead() >= 441*3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close())
	assert.False(t, clock.IsActivated())
	stopped := s.Playhead()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, s.Playhead(), "no blocks after close")
	assert.Zero(t, stopped%441)
}

func TestSessionProcessDuringEdits(t *testing.T) {
	clock := tractor.NewClockEngine(44100, 64)
	s := tractor.NewSession(clock, nil, nil)
	require.NoError(t, s.Open("clock"))
	defer s.Close()
	require.NoError(t, s.SetPlaying(true))
	cursor := s.CreateSessionCursor(0, tractor.TrackAudio)
	defer cursor.Close()

	done := make(chan struct{})
	observed := make(chan int, 1)
	go func() {
		n := 0
		for {
			select {
			case <-done:
				observed <- n
				return
			default:
			}
			ts := s.TimeScale()
			if ts == nil || !(ts.FramesPerBeat() > 0) {
				observed <- -1
				return
			}
			for _, tr := range s.Tracks() {
				if tr == nil {
					observed <- -1
					return
				}
			}
			n++
		}
	}()

	deadline := time.Now().Add(300 * time.Millisecond)
	for i := 0; time.Now().Before(deadline); i++ {
		require.NoError(t, s.SetTempo(float64(60+i%120)))
		s.SetPlayhead(uint64(i%50) * 64)
		tr := tractor.NewTrack(fmt.Sprintf("track %d", i), tractor.TrackAudio)
		tr.AddClip(tractor.Clip{Start: uint64(i%10) * 1000, Length: 500})
		s.AddTrack(tr)
		s.SetTrackSolo(tr, true)
		cursor.Advance(64)
		s.RemoveTrack(tr)
	}
	close(done)

	assert.Positive(t, <-observed, "lock-free reads saw a torn publish")
	assert.Zero(t, s.SoloTracks())
	assert.Zero(t, s.NumTracks())
	assert.True(t, s.IsPlaying())
	require.NoError(t, s.SetPlaying(false))
}

func TestClockEngineNeedsProcessor(t *testing.T) {
	clock := tractor.NewClockEngine(0, 0)
	assert.Equal(t, uint32(tractor.DefaultSampleRate), clock.SampleRate())
	assert.Error(t, clock.Open("clock"))
	assert.NoError(t, clock.Close())
}

func TestStabilize(t *testing.T) {
	start := time.Now()
	tractor.Stabilize(20 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
