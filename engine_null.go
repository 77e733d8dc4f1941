package tractor

import (
	"errors"
	"sync/atomic"
	"time"
)

type (
	// NullMidiEngine is a MIDI engine without outputs. It is used when MIDI
	// support is not compiled in or no driver is available.
	NullMidiEngine struct {
		active atomic.Bool
	}

	// ClockEngine is an audio engine without an audio device: a goroutine
	// ticks the processor one block at a time at the pace of a virtual sample
	// clock. Useful for headless runs and tests.
	ClockEngine struct {
		sampleRate  uint32
		blockFrames int
		processor   Processor
		active      atomic.Bool

		closeClock    chan struct{}
		finishedClock chan struct{}
	}
)

var _ MidiEngine = (*NullMidiEngine)(nil)
var _ AudioEngine = (*ClockEngine)(nil)

func (e *NullMidiEngine) Open(clientName string) error              { e.active.Store(true); return nil }
func (e *NullMidiEngine) Close() error                              { e.active.Store(false); return nil }
func (e *NullMidiEngine) IsActivated() bool                         { return e.active.Load() }
func (e *NullMidiEngine) SetPlaying(playing bool, _ Position) error { return nil }
func (e *NullMidiEngine) SongPosition(Position) error               { return nil }

// NewClockEngine returns a virtual clock running at sampleRate and calling the
// processor every blockFrames frames.
func NewClockEngine(sampleRate uint32, blockFrames int) *ClockEngine {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if blockFrames <= 0 {
		blockFrames = 512
	}
	return &ClockEngine{sampleRate: sampleRate, blockFrames: blockFrames}
}

func (e *ClockEngine) SampleRate() uint32 { return e.sampleRate }

// SetProcessor sets the processor; it takes effect on the next Open.
func (e *ClockEngine) SetProcessor(p Processor) { e.processor = p }

func (e *ClockEngine) IsActivated() bool { return e.active.Load() }

func (e *ClockEngine) SetPlaying(bool, Position) error { return nil }

func (e *ClockEngine) Open(clientName string) error {
	if e.active.Load() {
		return nil
	}
	if e.processor == nil {
		return errors.New("clock engine has no processor")
	}
	e.closeClock = make(chan struct{}, 1)
	e.finishedClock = make(chan struct{})
	period := time.Duration(e.blockFrames) * time.Second / time.Duration(e.sampleRate)
	go e.run(e.processor, period, e.closeClock, e.finishedClock)
	e.active.Store(true)
	return nil
}

func (e *ClockEngine) run(p Processor, period time.Duration, closeClock <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-closeClock:
			return
		case <-ticker.C:
			p.Process(e.blockFrames)
		}
	}
}

// Close stops the clock and waits for the last block to finish.
func (e *ClockEngine) Close() error {
	if !e.active.Swap(false) {
		return nil
	}
	trySend(e.closeClock, struct{}{})
	if _, ok := timeoutReceive(e.finishedClock, 3*time.Second); !ok {
		return errors.New("clock engine did not stop in time")
	}
	return nil
}

// trySend sends v to c if it is not full; it never blocks.
func trySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// timeoutReceive blocks until a value is received from c or t has passed. A
// closed channel counts as received.
func timeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v = <-c:
		return v, true
	case <-time.After(t):
		return v, false
	}
}
