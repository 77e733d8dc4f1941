// Package oto binds the session transport to the system audio device through
// ebitengine/oto.
package oto

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/tractor"
	"go.uber.org/zap"
)

type (
	// Engine is an audio engine playing through oto. The device pulls blocks
	// from a stream, and every block advances the session processor. The
	// session renders no audio itself, so the stream is silence, optionally
	// with a metronome.
	Engine struct {
		sampleRate   uint32
		bufferFrames int
		log          *zap.Logger
		processor    atomic.Pointer[processorBox]
		metronome    atomic.Bool
		active       atomic.Bool

		mu     sync.Mutex
		player *oto.Player
		stream *Stream
	}

	// Stream is the io.Reader handed to the oto player. Read is called from
	// the audio thread and never blocks; close waits for a read in flight to
	// finish.
	Stream struct {
		engine    *Engine
		floats    []float32
		bytes     []byte
		metronome *tractor.Metronome

		closed  atomic.Bool
		reading atomic.Int32
	}

	processorBox struct{ p tractor.Processor }
)

const (
	channels  = 2
	frameSize = channels * 2 // bytes per frame of 16-bit samples

	closeTimeout = 3 * time.Second
)

var (
	contextOnce sync.Once
	otoContext  *oto.Context
	contextRate uint32
	contextErr  error
)

var _ tractor.AudioEngine = (*Engine)(nil)

// NewEngine returns an engine asking the device for sampleRate and reading
// bufferFrames frames at a time.
func NewEngine(sampleRate uint32, bufferFrames int, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if sampleRate == 0 {
		sampleRate = tractor.DefaultSampleRate
	}
	if bufferFrames <= 0 {
		bufferFrames = 1024
	}
	return &Engine{sampleRate: sampleRate, bufferFrames: bufferFrames, log: log}
}

// oto allows one context per process; later engines share the first one and
// its sample rate.
func sharedContext(sampleRate uint32, bufferFrames int) (*oto.Context, uint32, error) {
	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   int(sampleRate),
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(bufferFrames) * time.Second / time.Duration(sampleRate),
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			contextErr = fmt.Errorf("cannot create oto context: %w", err)
			return
		}
		<-ready
		otoContext, contextRate = ctx, sampleRate
	})
	return otoContext, contextRate, contextErr
}

func (e *Engine) SampleRate() uint32 { return e.sampleRate }

func (e *Engine) SetProcessor(p tractor.Processor) { e.processor.Store(&processorBox{p}) }

// SetMetronome turns the beat click on or off.
func (e *Engine) SetMetronome(on bool) { e.metronome.Store(on) }

func (e *Engine) IsActivated() bool { return e.active.Load() }

// Open starts pulling audio from the device. The client name is not used by
// oto.
func (e *Engine) Open(clientName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active.Load() {
		return nil
	}
	ctx, rate, err := sharedContext(e.sampleRate, e.bufferFrames)
	if err != nil {
		return err
	}
	if rate != e.sampleRate {
		e.log.Info("audio device sample rate differs", zap.Uint32("requested", e.sampleRate), zap.Uint32("rate", rate))
		e.sampleRate = rate
	}
	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("cannot resume oto context: %w", err)
	}
	e.stream = newStream(e, e.bufferFrames)
	e.player = ctx.NewPlayer(e.stream)
	e.player.SetBufferSize(e.bufferFrames * frameSize)
	e.player.Play()
	e.active.Store(true)
	e.log.Debug("audio engine opened", zap.String("client", clientName), zap.Uint32("sampleRate", rate))
	return nil
}

// SetPlaying is a no-op: the stream keeps running while stopped and the
// processor reports whether the transport moved.
func (e *Engine) SetPlaying(bool, tractor.Position) error { return nil }

// Close pauses the player. A read in progress finishes before Close returns,
// and later reads do not call the processor.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active.Swap(false) {
		return nil
	}
	var errs []error
	if err := e.stream.close(closeTimeout); err != nil {
		errs = append(errs, err)
	}
	e.player.Pause()
	if err := e.player.Err(); err != nil {
		errs = append(errs, fmt.Errorf("oto player: %w", err))
	}
	if otoContext != nil {
		if err := otoContext.Suspend(); err != nil {
			errs = append(errs, fmt.Errorf("cannot suspend oto context: %w", err))
		}
	}
	e.player, e.stream = nil, nil
	return errors.Join(errs...)
}

func newStream(e *Engine, frames int) *Stream {
	return &Stream{
		engine:    e,
		floats:    make([]float32, frames*channels),
		bytes:     make([]byte, 0, frames*frameSize),
		metronome: tractor.NewMetronome(),
	}
}

// Read fills p with whole frames of audio, advancing the processor by the
// number of frames written.
func (s *Stream) Read(p []byte) (int, error) {
	s.reading.Add(1)
	defer s.reading.Add(-1)
	frames := min(len(p)/frameSize, len(s.floats)/channels)
	if frames == 0 {
		return 0, nil
	}
	buf := s.floats[:frames*channels]
	clear(buf)
	if s.closed.Load() {
		return copy(p, FloatBufferTo16BitLE(buf, s.bytes[:0])), nil
	}
	if box := s.engine.processor.Load(); box != nil {
		pos, playing := box.p.Process(frames)
		switch {
		case !playing:
			s.metronome.Stop()
		case s.engine.metronome.Load():
			s.metronome.Render(buf, channels, pos)
		}
	}
	s.bytes = FloatBufferTo16BitLE(buf, s.bytes[:0])
	return copy(p, s.bytes), nil
}

// close makes later reads render silence without calling the processor and
// waits up to timeout for a read in progress to return.
func (s *Stream) close(timeout time.Duration) error {
	s.closed.Store(true)
	deadline := time.Now().Add(timeout)
	for s.reading.Load() > 0 {
		if time.Now().After(deadline) {
			return errors.New("audio stream did not stop in time")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
