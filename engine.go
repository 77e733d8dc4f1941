package tractor

type (
	// Engine is the part common to the audio and the MIDI engine: a device
	// binding that the session opens under a client name, starts and stops
	// with the transport, and closes.
	Engine interface {
		Open(clientName string) error
		// Close releases the device. It must not return before the engine
		// has stopped calling into the session.
		Close() error
		IsActivated() bool
		SetPlaying(playing bool, pos Position) error
	}

	// AudioEngine drives the real-time side of the session: once opened, it
	// calls the Processor for every block it renders.
	AudioEngine interface {
		Engine
		// SampleRate returns the device sample rate, or 0 if unknown.
		SampleRate() uint32
		SetProcessor(p Processor)
	}

	// MidiEngine mirrors the transport to the MIDI outputs.
	MidiEngine interface {
		Engine
		// SongPosition tells the MIDI outputs where the playhead is while
		// stopped.
		SongPosition(pos Position) error
	}

	// Processor is called from the audio thread once per block. It must
	// not block or allocate.
	Processor interface {
		Process(frames int) (Position, bool)
	}

	// Position is a transport position in the units the engines need.
	Position struct {
		Frame uint64
		Tick  uint64
		Beat  int
		// SongPosition is the position in MIDI beats (sixteenth notes), as
		// used in MIDI song position pointer messages.
		SongPosition uint16
		// Scale is the time scale the position was computed with.
		Scale *TimeScale
	}
)

// PositionAt returns the position of frame on the time scale.
func (ts *TimeScale) PositionAt(frame uint64) Position {
	tick := ts.TickFromFrame(frame)
	spp := tick * 4 / uint64(ts.params.TicksPerBeat)
	if spp > 0x3fff {
		spp = 0x3fff
	}
	return Position{
		Frame:        frame,
		Tick:         tick,
		Beat:         ts.BeatFromFrame(frame),
		SongPosition: uint16(spp),
		Scale:        ts,
	}
}
