package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsariola/tractor"
	engines "github.com/vsariola/tractor/cmd"
)

var (
	playDuration  time.Duration
	playFrom      string
	playVirtual   bool
	playMetronome bool
	playMidiOut   string
	playInterval  time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play [FILE]",
	Short: "Run the transport",
	Long:  `Open the audio and MIDI engines and run the transport of a session document, printing the position until interrupted or until the duration has passed. MIDI outputs receive start, stop and song position messages.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("midi-out") {
			playMidiOut = cfg.MidiOut
		}
		audio := engines.NewAudioEngine(cfg.SampleRate, cfg.BlockFrames, playVirtual, log)
		if m, ok := audio.(interface{ SetMetronome(bool) }); ok {
			m.SetMetronome(playMetronome)
		}
		midi := engines.NewMidiEngine(playMidiOut, log)
		s := tractor.NewSession(audio, midi, log)
		if len(args) == 1 {
			if err := tractor.NewDocument(args[0], log).Load(s); err != nil {
				return fmt.Errorf("cannot load %s: %w", args[0], err)
			}
		} else if err := s.SetTempo(cfg.Tempo); err != nil {
			return err
		}
		if err := s.Open(cfg.ClientName); err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Warn("closing session", zap.Error(err))
			}
		}()

		from, err := parsePosition(s.TimeScale(), playFrom)
		if err != nil {
			return err
		}
		s.SetPlayhead(from)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if playDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, playDuration)
			defer cancel()
		}
		if err := s.SetPlaying(true); err != nil {
			return err
		}
		runTransport(ctx, cmd, s)
		if err := s.SetPlaying(false); err != nil && !errors.Is(err, tractor.ErrSessionClosed) {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stopped at %s\n", s.TimeScale().TimeFromFrame(s.Playhead()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().DurationVarP(&playDuration, "duration", "d", 0, "stop after this long; 0 runs until interrupted")
	playCmd.Flags().StringVar(&playFrom, "from", "", "start position: a frame count, or bar:beat (1 based)")
	playCmd.Flags().BoolVar(&playVirtual, "virtual", false, "keep time with a virtual clock instead of the audio device")
	playCmd.Flags().BoolVar(&playMetronome, "metronome", false, "click on every beat")
	playCmd.Flags().StringVar(&playMidiOut, "midi-out", "", "MIDI output port name prefix (default from TRACTOR_MIDI_OUT)")
	playCmd.Flags().DurationVar(&playInterval, "interval", 500*time.Millisecond, "how often to print the position")
	playCmd.Example = `  tractor play song.yml --metronome
  tractor play song.yml --from 9:1 -d 10s --midi-out "IAC"
  tractor play --virtual -d 2s`
}

func runTransport(ctx context.Context, cmd *cobra.Command, s *tractor.Session) {
	ticker := time.NewTicker(playInterval)
	defer ticker.Stop()
	length := s.SessionLength()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts := s.TimeScale()
			frame := s.Playhead()
			beat := ts.BeatFromFrame(frame)
			bar := ts.BarFromBeat(beat)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d:%d\n", ts.TimeFromFrame(frame), bar+1, beat-bar*int(ts.BeatsPerBar())+1)
			if length > 0 && frame >= length {
				return
			}
		}
	}
}

// parsePosition accepts a frame count or a 1 based bar:beat position.
func parsePosition(ts *tractor.TimeScale, s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	var bar, beat int
	if n, err := fmt.Sscanf(s, "%d:%d", &bar, &beat); err == nil && n == 2 {
		if bar < 1 || beat < 1 || beat > int(ts.BeatsPerBar()) {
			return 0, fmt.Errorf("%w: position %q", tractor.ErrInvalidParameter, s)
		}
		return ts.FrameFromBeat((bar-1)*int(ts.BeatsPerBar()) + beat - 1), nil
	}
	frame, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: position %q", tractor.ErrInvalidParameter, s)
	}
	return frame, nil
}
