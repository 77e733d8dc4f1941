//go:build cgo

package cmd

import (
	"github.com/vsariola/tractor"
	"github.com/vsariola/tractor/oto"
	"go.uber.org/zap"
)

// NewAudioEngine returns an engine on the system audio device. With virtual
// set, a clock engine stands in for the device.
func NewAudioEngine(sampleRate uint32, blockFrames int, virtual bool, log *zap.Logger) tractor.AudioEngine {
	if virtual {
		return tractor.NewClockEngine(sampleRate, blockFrames)
	}
	return oto.NewEngine(sampleRate, blockFrames, log)
}
