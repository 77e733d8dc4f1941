//go:build !cgo

package cmd

import (
	"github.com/vsariola/tractor"
	"go.uber.org/zap"
)

func NewAudioEngine(sampleRate uint32, blockFrames int, virtual bool, log *zap.Logger) tractor.AudioEngine {
	// the audio device needs cgo; keep time with a virtual clock instead
	return tractor.NewClockEngine(sampleRate, blockFrames)
}
