package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vsariola/tractor"
)

var (
	timeFrame int64
	timeBeat  int
	timeTick  int64
	timePixel int
)

var timeCmd = &cobra.Command{
	Use:   "time [FILE]",
	Short: "Convert a position between frames, beats, ticks and pixels",
	Long:  `Convert a position on the time scale of a session document, or on the default time scale, and print it in every unit. Give exactly one of --frame, --beat, --tick or --pixel.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ts *tractor.TimeScale
		if len(args) == 1 {
			s, _, err := loadSession(args[0])
			if err != nil {
				return err
			}
			ts = s.TimeScale()
		} else {
			p := tractor.DefaultTimeScaleParams()
			p.SampleRate = cfg.SampleRate
			p.Tempo = cfg.Tempo
			var err error
			if ts, err = tractor.NewTimeScale(p); err != nil {
				return err
			}
		}
		var frame uint64
		switch f := cmd.Flags(); {
		case f.Changed("beat"):
			frame = ts.FrameFromBeat(timeBeat)
		case f.Changed("tick"):
			frame = ts.FrameFromTick(uint64(max(timeTick, 0)))
		case f.Changed("pixel"):
			frame = ts.FrameFromPixel(timePixel)
		default:
			frame = uint64(max(timeFrame, 0))
		}
		printPosition(cmd.OutOrStdout(), ts, frame)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timeCmd)
	timeCmd.Flags().Int64Var(&timeFrame, "frame", 0, "position in frames")
	timeCmd.Flags().IntVar(&timeBeat, "beat", 0, "position in beats")
	timeCmd.Flags().Int64Var(&timeTick, "tick", 0, "position in MIDI ticks")
	timeCmd.Flags().IntVar(&timePixel, "pixel", 0, "position in pixels")
	timeCmd.MarkFlagsMutuallyExclusive("frame", "beat", "tick", "pixel")
}

func printPosition(w io.Writer, ts *tractor.TimeScale, frame uint64) {
	beat := ts.BeatFromFrame(frame)
	pos := ts.PositionAt(frame)
	fmt.Fprintf(w, "time   %s\n", ts.TimeFromFrame(frame))
	fmt.Fprintf(w, "frame  %d (snapped %d)\n", frame, ts.FrameSnap(frame))
	fmt.Fprintf(w, "beat   %d (bar %d", beat, ts.BarFromBeat(beat)+1)
	if ts.BeatIsBar(beat) {
		fmt.Fprint(w, ", downbeat")
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintf(w, "tick   %d\n", pos.Tick)
	fmt.Fprintf(w, "pixel  %d\n", ts.PixelFromFrame(frame))
	fmt.Fprintf(w, "spp    %d\n", pos.SongPosition)
}
