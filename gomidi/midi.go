// Package gomidi mirrors the session transport to a MIDI output through
// gitlab.com/gomidi/midi drivers.
package gomidi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vsariola/tractor"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

type (
	// Engine sends MIDI start, stop, continue and song position pointer
	// messages to one output port.
	Engine struct {
		driver drivers.Driver
		prefix string
		log    *zap.Logger

		mu     sync.Mutex
		out    drivers.Out
		active atomic.Bool
	}

	// VirtualOutOpener is implemented by drivers that can create a port other
	// applications connect to, e.g. rtmididrv.
	VirtualOutOpener interface {
		OpenVirtualOut(name string) (drivers.Out, error)
	}
)

var _ tractor.MidiEngine = (*Engine)(nil)

// NewEngine returns an engine on driver. Open picks the first output whose
// name starts with outPrefix; with an empty prefix, or when nothing matches,
// a virtual port named after the client is created if the driver supports
// it. A nil driver gives an engine without outputs.
func NewEngine(driver drivers.Driver, outPrefix string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{driver: driver, prefix: outPrefix, log: log}
}

// Outputs lists the output port names of the driver.
func (e *Engine) Outputs() []string {
	if e.driver == nil {
		return nil
	}
	outs, err := e.driver.Outs()
	if err != nil {
		return nil
	}
	ret := make([]string, 0, len(outs))
	for _, o := range outs {
		ret = append(ret, o.String())
	}
	return ret
}

// Port returns the name of the open output port, or "" if there is none.
func (e *Engine) Port() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return ""
	}
	return e.out.String()
}

func (e *Engine) IsActivated() bool { return e.active.Load() }

func (e *Engine) Open(clientName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active.Load() {
		return nil
	}
	out, err := e.findOut(clientName)
	if err != nil {
		return err
	}
	if out != nil && !out.IsOpen() {
		if err := out.Open(); err != nil {
			return fmt.Errorf("opening MIDI output %q failed: %w", out.String(), err)
		}
	}
	if out == nil {
		e.log.Info("no MIDI output, transport is not mirrored")
	} else {
		e.log.Info("MIDI output opened", zap.String("port", out.String()))
	}
	e.out = out
	e.active.Store(true)
	return nil
}

func (e *Engine) findOut(clientName string) (drivers.Out, error) {
	if e.driver == nil {
		return nil, nil
	}
	if e.prefix != "" {
		outs, err := e.driver.Outs()
		if err != nil {
			return nil, fmt.Errorf("listing MIDI outputs failed: %w", err)
		}
		for _, o := range outs {
			if strings.HasPrefix(o.String(), e.prefix) {
				return o, nil
			}
		}
		e.log.Warn("no MIDI output matches", zap.String("prefix", e.prefix))
	}
	if v, ok := e.driver.(VirtualOutOpener); ok {
		out, err := v.OpenVirtualOut(clientName)
		if err != nil {
			return nil, fmt.Errorf("opening virtual MIDI output failed: %w", err)
		}
		return out, nil
	}
	return nil, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active.Swap(false) {
		return nil
	}
	out := e.out
	e.out = nil
	if out == nil || !out.IsOpen() {
		return nil
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing MIDI output failed: %w", err)
	}
	return nil
}

// SetPlaying sends Start when starting from the top, song position and
// Continue when starting elsewhere, and Stop when stopping.
func (e *Engine) SetPlaying(playing bool, pos tractor.Position) error {
	switch {
	case !playing:
		return e.send(midi.Stop())
	case pos.SongPosition == 0:
		return e.send(spp(0), midi.Start())
	default:
		return e.send(spp(pos.SongPosition), midi.Continue())
	}
}

// SongPosition sends the song position pointer of pos.
func (e *Engine) SongPosition(pos tractor.Position) error {
	return e.send(spp(pos.SongPosition))
}

// spp encodes a song position pointer, least significant 7 bits first.
// midi.SPP puts the most significant bits first, which receivers misread.
func spp(pos uint16) midi.Message {
	return midi.Message{0xF2, byte(pos & 0x7f), byte(pos >> 7 & 0x7f)}
}

func (e *Engine) send(msgs ...midi.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return nil
	}
	var errs []error
	for _, m := range msgs {
		if err := e.out.Send(m); err != nil {
			errs = append(errs, fmt.Errorf("sending %s failed: %w", m, err))
		}
	}
	return errors.Join(errs...)
}
