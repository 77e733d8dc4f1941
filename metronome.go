package tractor

import "math"

// Metronome renders a click on every beat, accented on bars. It keeps the
// state of a click that spans block boundaries, so consecutive blocks must be
// rendered in order.
type Metronome struct {
	Volume float32

	sampleRate uint32
	phase      int // frames since the current click started
	freq       float64
}

const (
	clickLength = 0.03 // seconds
	beatFreq    = 1760.0
	barFreq     = 2637.0
)

// NewMetronome returns a metronome at half volume.
func NewMetronome() *Metronome {
	return &Metronome{Volume: 0.5, phase: math.MaxInt}
}

// Render mixes the clicks falling into the block starting at pos into buf,
// which holds interleaved frames of the given number of channels. pos must
// carry the time scale it was computed with.
func (m *Metronome) Render(buf []float32, channels int, pos Position) {
	ts := pos.Scale
	if ts == nil || channels <= 0 {
		return
	}
	if m.sampleRate != ts.SampleRate() {
		m.sampleRate = ts.SampleRate()
		m.phase = math.MaxInt
	}
	frames := len(buf) / channels
	end := pos.Frame + uint64(frames)
	start := 0
	for beat := pos.Beat; ; beat++ {
		at := ts.FrameFromBeat(beat)
		if at >= end {
			break
		}
		if at < pos.Frame {
			continue
		}
		offset := int(at - pos.Frame)
		m.mix(buf[start*channels:offset*channels], channels)
		m.phase, start = 0, offset
		m.freq = beatFreq
		if ts.BeatIsBar(beat) {
			m.freq = barFreq
		}
	}
	m.mix(buf[start*channels:], channels)
}

// Stop cuts off the click in progress.
func (m *Metronome) Stop() { m.phase = math.MaxInt }

func (m *Metronome) mix(buf []float32, channels int) {
	length := int(clickLength * float64(m.sampleRate))
	for i := 0; i < len(buf)/channels && m.phase < length; i++ {
		t := float64(m.phase)
		env := 1 - t/float64(length)
		v := m.Volume * float32(env*env*math.Sin(2*math.Pi*m.freq*t/float64(m.sampleRate)))
		for c := range channels {
			buf[i*channels+c] += v
		}
		m.phase++
	}
}

// RenderClickTrack renders the clicks between the frames from and to on ts
// into a new interleaved stereo buffer.
func RenderClickTrack(ts *TimeScale, from, to uint64, volume float32) []float32 {
	if to <= from {
		return nil
	}
	const block = 4096
	buf := make([]float32, (to-from)*2)
	m := NewMetronome()
	m.Volume = volume
	for f := from; f < to; f += block {
		n := min(block, to-f)
		i := (f - from) * 2
		m.Render(buf[i:i+n*2], 2, ts.PositionAt(f))
	}
	return buf
}
