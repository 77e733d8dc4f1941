package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsariola/tractor"
)

var (
	newName         string
	newTempo        float64
	newBeatsPerBar  uint16
	newTicksPerBeat uint16
	newSnapPerBeat  uint16
	newAudioTracks  int
	newMidiTracks   int
)

var newCmd = &cobra.Command{
	Use:   "new FILE",
	Short: "Create a session document",
	Long:  `Create a session document with the given time scale and empty audio and MIDI tracks. Files ending in .json are written as JSON, others as YAML.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := tractor.NewSession(nil, nil, log)
		if err := newSession(s); err != nil {
			return err
		}
		doc := tractor.NewDocument(args[0], log)
		if err := doc.Save(s); err != nil {
			return fmt.Errorf("cannot save %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s with %d tracks\n", args[0], s.NumTracks())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)

	newCmd.Flags().StringVarP(&newName, "name", "n", "", "session name")
	newCmd.Flags().Float64VarP(&newTempo, "tempo", "t", 0, "tempo in beats per minute (default from TRACTOR_TEMPO)")
	newCmd.Flags().Uint16Var(&newBeatsPerBar, "beats-per-bar", tractor.DefaultBeatsPerBar, "beats per bar")
	newCmd.Flags().Uint16Var(&newTicksPerBeat, "ticks-per-beat", tractor.DefaultTicksPerBeat, "MIDI ticks per beat")
	newCmd.Flags().Uint16Var(&newSnapPerBeat, "snap", tractor.DefaultSnapPerBeat, "snap divisions per beat, 0 for none")
	newCmd.Flags().IntVarP(&newAudioTracks, "audio", "a", 1, "number of audio tracks")
	newCmd.Flags().IntVarP(&newMidiTracks, "midi", "m", 1, "number of MIDI tracks")

	newCmd.Example = `  # a session with one audio and one MIDI track at 120 BPM
  tractor new song.yml

  # waltz at 90 BPM with four MIDI tracks, written as JSON
  tractor new waltz.json -t 90 --beats-per-bar 3 -a 0 -m 4`
}

func newSession(s *tractor.Session) error {
	tempo := newTempo
	if tempo == 0 {
		tempo = cfg.Tempo
	}
	s.SetSessionName(newName)
	for _, err := range []error{
		s.SetSampleRate(cfg.SampleRate),
		s.SetTempo(tempo),
		s.SetBeatsPerBar(newBeatsPerBar),
		s.SetTicksPerBeat(newTicksPerBeat),
		s.SetSnapPerBeat(newSnapPerBeat),
	} {
		if err != nil {
			return err
		}
	}
	for i := range newAudioTracks {
		s.AddTrack(tractor.NewTrack(fmt.Sprintf("Audio %d", i+1), tractor.TrackAudio))
	}
	for i := range newMidiTracks {
		t := tractor.NewTrack(fmt.Sprintf("MIDI %d", i+1), tractor.TrackMidi)
		t.SetMidiChannel(uint8(i % 16))
		s.AddTrack(t)
	}
	return nil
}
