//go:build !cgo

package cmd

import (
	"github.com/vsariola/tractor"
	"go.uber.org/zap"
)

func NewMidiEngine(outPrefix string, log *zap.Logger) tractor.MidiEngine {
	// with no cgo, we cannot use MIDI, so return a null engine
	return &tractor.NullMidiEngine{}
}
