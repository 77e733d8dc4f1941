package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsariola/tractor"
)

var (
	exportFrom   string
	exportTo     string
	exportPCM16  bool
	exportVolume float32
)

var exportCmd = &cobra.Command{
	Use:   "export FILE OUT.wav",
	Short: "Render the click track of a session to a .wav file",
	Long:  `Render a metronome click for every beat of the session, accented on bars, and write it as a stereo .wav file. The range defaults to the whole session, or four bars if the session is empty.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := loadSession(args[0])
		if err != nil {
			return err
		}
		ts := s.TimeScale()
		from, err := parsePosition(ts, exportFrom)
		if err != nil {
			return err
		}
		to := s.SessionLength()
		if to == 0 {
			to = ts.FrameFromBeat(4 * int(ts.BeatsPerBar()))
		}
		if exportTo != "" {
			if to, err = parsePosition(ts, exportTo); err != nil {
				return err
			}
		}
		if to <= from {
			return fmt.Errorf("%w: empty range %d..%d", tractor.ErrInvalidParameter, from, to)
		}
		buf := tractor.RenderClickTrack(ts, from, to, exportVolume)
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := tractor.WriteWav(f, buf, ts.SampleRate(), 2, exportPCM16); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s, %s\n", args[1], ts.TimeFromFrame(to-from))
		return f.Close()
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "start position: a frame count, or bar:beat (1 based)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "end position: a frame count, or bar:beat (1 based)")
	exportCmd.Flags().BoolVar(&exportPCM16, "pcm16", false, "write 16-bit integer samples instead of floats")
	exportCmd.Flags().Float32Var(&exportVolume, "volume", 0.5, "click volume, 0 to 1")
}
