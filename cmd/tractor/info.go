package main

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/spf13/cobra"

	"github.com/vsariola/tractor"
)

type (
	sessionInfo struct {
		Path         string
		Name         string
		Description  string
		SampleRate   uint32
		Tempo        float64
		BeatsPerBar  uint16
		TicksPerBeat uint16
		SnapPerBeat  uint16
		Length       uint64
		Duration     string
		Bars         int
		SoloTracks   int
		Tracks       []trackInfo
	}

	trackInfo struct {
		Index   int
		ID      string
		Name    string
		Type    string
		Channel uint8
		Mute    bool
		Solo    bool
		MidiTag int
		Clips   int
		Extent  uint64
	}
)

const defaultInfoFormat = `{{ .Name | default "(untitled)" }}  {{ .Path }}
{{- with .Description }}
{{ . }}
{{- end }}
tempo {{ printf "%.2f" .Tempo }} bpm, {{ .BeatsPerBar }}/4, {{ .SampleRate }} Hz, {{ .TicksPerBeat }} ticks per beat
length {{ .Duration }} ({{ .Length }} frames, {{ .Bars }} bars)
{{ len .Tracks }} tracks{{ if .SoloTracks }}, {{ .SoloTracks }} soloed{{ end }}
{{- range .Tracks }}
{{ printf "%3d" .Index }} {{ .Type | upper | printf "%-5s" }} {{ .Name | trunc 24 | printf "%-24s" }}
{{- if eq .Type "midi" }} ch {{ add .Channel 1 }}{{ if ge .MidiTag 0 }} tag {{ .MidiTag }}{{ end }}{{ end }}
{{- if .Mute }} muted{{ end }}{{ if .Solo }} solo{{ end }} {{ .Clips }} clips
{{- end }}
`

var infoFormat string

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Describe a session document",
	Long:  `Print the time scale and the tracks of a session document. The output can be customized with a Go template; sprig functions are available.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, doc, err := loadSession(args[0])
		if err != nil {
			return err
		}
		return renderInfo(cmd.OutOrStdout(), infoFormat, describeSession(doc.Path, s))
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", defaultInfoFormat, "Go template for the output")
	infoCmd.Example = `  tractor info song.yml
  tractor info song.yml -f '{{ .Tempo }} {{ len .Tracks }}{{ "\n" }}'
  tractor info song.yml -f '{{ range .Tracks }}{{ .ID }} {{ .Name | quote }}{{ "\n" }}{{ end }}'`
}

func describeSession(path string, s *tractor.Session) sessionInfo {
	ts := s.TimeScale()
	length := s.SessionLength()
	bars := 0
	if length > 0 {
		bars = ts.BarFromBeat(ts.BeatFromFrame(length-1)) + 1
	}
	info := sessionInfo{
		Path:         path,
		Name:         s.SessionName(),
		Description:  s.Description(),
		SampleRate:   ts.SampleRate(),
		Tempo:        ts.Tempo(),
		BeatsPerBar:  ts.BeatsPerBar(),
		TicksPerBeat: ts.TicksPerBeat(),
		SnapPerBeat:  ts.SnapPerBeat(),
		Length:       length,
		Duration:     ts.TimeFromFrame(length),
		Bars:         bars,
		SoloTracks:   s.SoloTracks(),
	}
	for i, t := range s.Tracks() {
		tag, ok := t.MidiTag()
		if !ok {
			tag = -1
		}
		info.Tracks = append(info.Tracks, trackInfo{
			Index:   i,
			ID:      t.ID().String(),
			Name:    t.Name(),
			Type:    t.Type().String(),
			Channel: t.MidiChannel(),
			Mute:    t.IsMute(),
			Solo:    t.IsSolo(),
			MidiTag: tag,
			Clips:   t.NumClips(),
			Extent:  t.Extent(),
		})
	}
	return info
}

func renderInfo(w io.Writer, format string, info sessionInfo) error {
	tmpl, err := template.New("info").Funcs(sprig.TxtFuncMap()).Parse(format)
	if err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	if err := tmpl.Execute(w, info); err != nil {
		return fmt.Errorf("rendering info: %w", err)
	}
	return nil
}
