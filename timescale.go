package tractor

import (
	"fmt"
	"math"
)

// Defaults used by a cleared session and by documents missing the fields.
const (
	DefaultSampleRate     = 44100
	DefaultTempo          = 120.0
	DefaultTicksPerBeat   = 480
	DefaultBeatsPerBar    = 4
	DefaultPixelsPerBeat  = 32
	DefaultHorizontalZoom = 100
	DefaultVerticalZoom   = 100
	DefaultSnapPerBeat    = 0
)

type (
	// TimeScaleParams are the scalar parameters a TimeScale is derived from.
	// HorizontalZoom is in percent; SnapPerBeat of 0 or 1 disables snapping.
	TimeScaleParams struct {
		SampleRate     uint32  // frames per second
		Tempo          float64 // beats per minute
		TicksPerBeat   uint16  // PPQN
		BeatsPerBar    uint16
		PixelsPerBeat  uint16
		HorizontalZoom uint16
		SnapPerBeat    uint16
	}

	// TimeScale converts between frames, ticks, beats and pixels. A TimeScale
	// is immutable once built: changing a parameter means building a new one,
	// so the cached coefficients can never be out of date with respect to the
	// parameters they were computed from. All conversions are O(1), allocation
	// free and safe to call from the audio thread.
	//
	// Conversions round down to the natural resolution of the result. The
	// conversions towards a coarser unit (frame to beat, frame to tick, frame
	// to pixel, pixel to beat) return the largest count whose image in the
	// finer unit does not exceed the input, provided one unit of the result
	// spans at least one unit of the input. Validate guarantees this for
	// ticks and beats, so TickFromFrame(FrameFromTick(k)) == k and
	// BeatFromFrame(FrameFromBeat(b)) == b always hold. Pixel conversions are
	// exact only while a pixel spans at least a frame and a beat at least a
	// pixel.
	TimeScale struct {
		params TimeScaleParams

		framesPerBeat  float64
		framesPerTick  float64
		beatWidth      float64 // pixels per beat, zoom applied
		framesPerPixel float64
	}
)

// DefaultTimeScaleParams returns the parameters of a freshly cleared session.
func DefaultTimeScaleParams() TimeScaleParams {
	return TimeScaleParams{
		SampleRate:     DefaultSampleRate,
		Tempo:          DefaultTempo,
		TicksPerBeat:   DefaultTicksPerBeat,
		BeatsPerBar:    DefaultBeatsPerBar,
		PixelsPerBeat:  DefaultPixelsPerBeat,
		HorizontalZoom: DefaultHorizontalZoom,
		SnapPerBeat:    DefaultSnapPerBeat,
	}
}

// Validate checks that the parameters describe a usable time scale.
func (p TimeScaleParams) Validate() error {
	switch {
	case p.SampleRate == 0:
		return fmt.Errorf("sample rate should be > 0: %w", ErrInvalidParameter)
	case !(p.Tempo > 0) || math.IsInf(p.Tempo, 0):
		return fmt.Errorf("tempo should be > 0, got %v: %w", p.Tempo, ErrInvalidParameter)
	case p.TicksPerBeat == 0:
		return fmt.Errorf("ticks per beat should be > 0: %w", ErrInvalidParameter)
	case float64(p.TicksPerBeat)*p.Tempo > float64(p.SampleRate)*60:
		return fmt.Errorf("a tick should span at least one frame, got %d ticks per beat at %v BPM and %d Hz: %w",
			p.TicksPerBeat, p.Tempo, p.SampleRate, ErrInvalidParameter)
	case p.BeatsPerBar == 0:
		return fmt.Errorf("beats per bar should be > 0: %w", ErrInvalidParameter)
	case p.PixelsPerBeat == 0:
		return fmt.Errorf("pixels per beat should be > 0: %w", ErrInvalidParameter)
	case p.HorizontalZoom == 0:
		return fmt.Errorf("horizontal zoom should be > 0: %w", ErrInvalidParameter)
	}
	return nil
}

// NewTimeScale validates the parameters and computes the conversion
// coefficients.
func NewTimeScale(p TimeScaleParams) (*TimeScale, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ts := &TimeScale{params: p}
	ts.update()
	return ts, nil
}

// update recomputes the cached coefficients from the parameters.
func (ts *TimeScale) update() {
	p := ts.params
	ts.framesPerBeat = float64(p.SampleRate) * 60 / p.Tempo
	ts.framesPerTick = ts.framesPerBeat / float64(p.TicksPerBeat)
	ts.beatWidth = float64(p.PixelsPerBeat) * float64(p.HorizontalZoom) / 100
	ts.framesPerPixel = ts.framesPerBeat / ts.beatWidth
}

// Params returns the parameters the time scale was built from.
func (ts *TimeScale) Params() TimeScaleParams { return ts.params }

func (ts *TimeScale) SampleRate() uint32     { return ts.params.SampleRate }
func (ts *TimeScale) Tempo() float64         { return ts.params.Tempo }
func (ts *TimeScale) TicksPerBeat() uint16   { return ts.params.TicksPerBeat }
func (ts *TimeScale) BeatsPerBar() uint16    { return ts.params.BeatsPerBar }
func (ts *TimeScale) PixelsPerBeat() uint16  { return ts.params.PixelsPerBeat }
func (ts *TimeScale) HorizontalZoom() uint16 { return ts.params.HorizontalZoom }
func (ts *TimeScale) SnapPerBeat() uint16    { return ts.params.SnapPerBeat }

// FramesPerBeat returns SampleRate * 60 / Tempo.
func (ts *TimeScale) FramesPerBeat() float64 { return ts.framesPerBeat }

// BeatIsBar reports whether beat starts a bar.
func (ts *TimeScale) BeatIsBar(beat int) bool {
	return beat >= 0 && beat%int(ts.params.BeatsPerBar) == 0
}

// BarFromBeat returns the zero based bar number the beat belongs to.
func (ts *TimeScale) BarFromBeat(beat int) int {
	if beat <= 0 {
		return 0
	}
	return beat / int(ts.params.BeatsPerBar)
}

// PixelFromBeat returns the x coordinate where beat starts.
func (ts *TimeScale) PixelFromBeat(beat int) int {
	if beat <= 0 {
		return 0
	}
	return int(float64(beat) * ts.beatWidth)
}

// BeatFromPixel returns the beat under the x coordinate.
func (ts *TimeScale) BeatFromPixel(x int) int {
	if x <= 0 {
		return 0
	}
	beat := int(float64(x) / ts.beatWidth)
	if beat > 0 && ts.PixelFromBeat(beat) > x {
		beat--
	}
	if ts.PixelFromBeat(beat+1) <= x {
		beat++
	}
	return beat
}

// PixelFromTick returns the x coordinate of tick.
func (ts *TimeScale) PixelFromTick(tick uint64) int {
	return int(float64(tick) * ts.beatWidth / float64(ts.params.TicksPerBeat))
}

// TickFromPixel returns the tick at the x coordinate.
func (ts *TimeScale) TickFromPixel(x int) uint64 {
	if x <= 0 {
		return 0
	}
	return uint64(float64(x) * float64(ts.params.TicksPerBeat) / ts.beatWidth)
}

// FrameFromPixel returns the first frame shown at the x coordinate.
func (ts *TimeScale) FrameFromPixel(x int) uint64 {
	if x <= 0 {
		return 0
	}
	return uint64(float64(x) * ts.framesPerPixel)
}

// PixelFromFrame returns the x coordinate showing frame.
func (ts *TimeScale) PixelFromFrame(frame uint64) int {
	x := int(float64(frame) / ts.framesPerPixel)
	if x > 0 && ts.FrameFromPixel(x) > frame {
		x--
	}
	if ts.FrameFromPixel(x+1) <= frame {
		x++
	}
	return x
}

// FrameFromBeat returns the first frame of beat.
func (ts *TimeScale) FrameFromBeat(beat int) uint64 {
	if beat <= 0 {
		return 0
	}
	return uint64(float64(beat) * ts.framesPerBeat)
}

// BeatFromFrame returns the beat frame falls in.
func (ts *TimeScale) BeatFromFrame(frame uint64) int {
	beat := int(float64(frame) / ts.framesPerBeat)
	if beat > 0 && ts.FrameFromBeat(beat) > frame {
		beat--
	}
	if ts.FrameFromBeat(beat+1) <= frame {
		beat++
	}
	return beat
}

// FrameFromTick returns the first frame of tick.
func (ts *TimeScale) FrameFromTick(tick uint64) uint64 {
	return uint64(float64(tick) * ts.framesPerTick)
}

// TickFromFrame returns the tick frame falls in.
func (ts *TimeScale) TickFromFrame(frame uint64) uint64 {
	tick := uint64(float64(frame) / ts.framesPerTick)
	if tick > 0 && ts.FrameFromTick(tick) > frame {
		tick--
	}
	if ts.FrameFromTick(tick+1) <= frame {
		tick++
	}
	return tick
}

// FrameSnap rounds frame down to the nearest 1/SnapPerBeat fraction of a beat.
// With SnapPerBeat of 0 or 1, or a snap unit shorter than one frame, frame is
// returned unchanged.
func (ts *TimeScale) FrameSnap(frame uint64) uint64 {
	if ts.params.SnapPerBeat <= 1 {
		return frame
	}
	unit := ts.framesPerBeat / float64(ts.params.SnapPerBeat)
	if unit < 1 {
		return frame
	}
	at := func(n uint64) uint64 { return uint64(float64(n) * unit) }
	n := uint64(float64(frame) / unit)
	if n > 0 && at(n) > frame {
		n--
	}
	if at(n+1) <= frame {
		n++
	}
	return at(n)
}

// PixelSnap is FrameSnap in the pixel domain: x is rounded down to the pixel
// position of the nearest snapped beat fraction.
func (ts *TimeScale) PixelSnap(x int) int {
	if x <= 0 {
		return 0
	}
	if ts.params.SnapPerBeat <= 1 {
		return x
	}
	unit := ts.beatWidth / float64(ts.params.SnapPerBeat)
	if unit < 1 {
		return x
	}
	at := func(n int) int { return int(float64(n) * unit) }
	n := int(float64(x) / unit)
	if n > 0 && at(n) > x {
		n--
	}
	if at(n+1) <= x {
		n++
	}
	return at(n)
}

// TimeFromFrame formats frame as hh:mm:ss.zzz.
func (ts *TimeScale) TimeFromFrame(frame uint64) string {
	msecs := frame * 1000 / uint64(ts.params.SampleRate)
	hh := msecs / 3600000
	msecs -= hh * 3600000
	mm := msecs / 60000
	msecs -= mm * 60000
	ss := msecs / 1000
	msecs -= ss * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hh, mm, ss, msecs)
}
