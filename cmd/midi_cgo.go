//go:build cgo

package cmd

import (
	"github.com/vsariola/tractor"
	"github.com/vsariola/tractor/gomidi"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"
)

// NewMidiEngine returns an rtmidi backed engine. If the driver cannot be
// opened the engine runs without outputs.
func NewMidiEngine(outPrefix string, log *zap.Logger) tractor.MidiEngine {
	drv, err := rtmididrv.New()
	if err != nil {
		log.Warn("MIDI driver unavailable", zap.Error(err))
		return gomidi.NewEngine(nil, outPrefix, log)
	}
	return gomidi.NewEngine(drv, outPrefix, log)
}
