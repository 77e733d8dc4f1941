package tractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type (
	// Document is the context handed to the element load/save methods: where
	// the session lives and whom to tell about fields that had to fall back
	// to defaults.
	Document struct {
		Path string
		log  *zap.Logger
	}

	// SessionElement is the persisted part of a session. Tracks are kept as
	// raw nodes; each is decoded by Track.LoadElement.
	SessionElement struct {
		Name           string      `yaml:"name,omitempty"`
		Description    string      `yaml:"description,omitempty"`
		SampleRate     uint32      `yaml:"sample-rate"`
		Tempo          float64     `yaml:"tempo"`
		TicksPerBeat   uint16      `yaml:"ticks-per-beat"`
		BeatsPerBar    uint16      `yaml:"beats-per-bar"`
		PixelsPerBeat  uint16      `yaml:"pixels-per-beat"`
		HorizontalZoom uint16      `yaml:"horizontal-zoom"`
		VerticalZoom   uint16      `yaml:"vertical-zoom"`
		SnapPerBeat    uint16      `yaml:"snap-per-beat"`
		Tracks         []yaml.Node `yaml:"tracks,omitempty"`
	}

	// TrackElement is the persisted part of a track.
	TrackElement struct {
		ID          uuid.UUID `yaml:"id"`
		Name        string    `yaml:"name,omitempty"`
		Type        TrackType `yaml:"type"`
		MidiChannel uint8     `yaml:"midi-channel,omitempty"`
		Mute        bool      `yaml:"mute,omitempty"`
		Solo        bool      `yaml:"solo,omitempty"`
		Clips       []Clip    `yaml:"clips,omitempty"`
	}
)

// NewDocument returns a document context for path. A nil logger discards
// the warnings.
func NewDocument(path string, log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	return &Document{Path: path, log: log}
}

// LoadElement replaces the session contents with the element. Missing fields
// take their defaults; fields with invalid values (e.g. a zero tempo) are
// reported to the document log and fall back to their defaults too. The
// session is left untouched if the element cannot be decoded.
func (s *Session) LoadElement(doc *Document, elem *yaml.Node) error {
	if elem.Kind == yaml.DocumentNode && len(elem.Content) > 0 {
		elem = elem.Content[0]
	}
	e := SessionElement{
		SampleRate:     DefaultSampleRate,
		Tempo:          DefaultTempo,
		TicksPerBeat:   DefaultTicksPerBeat,
		BeatsPerBar:    DefaultBeatsPerBar,
		PixelsPerBeat:  DefaultPixelsPerBeat,
		HorizontalZoom: DefaultHorizontalZoom,
		VerticalZoom:   DefaultVerticalZoom,
		SnapPerBeat:    DefaultSnapPerBeat,
	}
	if elem.Kind != 0 {
		if err := elem.Decode(&e); err != nil {
			return fmt.Errorf("decoding session element: %w", err)
		}
	}
	tracks := make([]*Track, 0, len(e.Tracks))
	for i := range e.Tracks {
		t := &Track{}
		if err := t.LoadElement(doc, &e.Tracks[i]); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		tracks = append(tracks, t)
	}
	s.Clear()
	s.SetSessionName(e.Name)
	s.SetDescription(e.Description)
	fallback := func(field string, err error) {
		if err != nil {
			doc.log.Warn("using default", zap.String("path", doc.Path), zap.String("field", field), zap.Error(err))
		}
	}
	fallback("sample-rate", s.SetSampleRate(e.SampleRate))
	fallback("tempo", s.SetTempo(e.Tempo))
	fallback("ticks-per-beat", s.SetTicksPerBeat(e.TicksPerBeat))
	fallback("beats-per-bar", s.SetBeatsPerBar(e.BeatsPerBar))
	fallback("pixels-per-beat", s.SetPixelsPerBeat(e.PixelsPerBeat))
	fallback("horizontal-zoom", s.SetHorizontalZoom(e.HorizontalZoom))
	fallback("vertical-zoom", s.SetVerticalZoom(e.VerticalZoom))
	fallback("snap-per-beat", s.SetSnapPerBeat(e.SnapPerBeat))
	for _, t := range tracks {
		s.AddTrack(t)
	}
	return nil
}

// SaveElement stores the session into elem.
func (s *Session) SaveElement(doc *Document, elem *yaml.Node) error {
	p := s.TimeScale().Params()
	e := SessionElement{
		Name:           s.SessionName(),
		Description:    s.Description(),
		SampleRate:     p.SampleRate,
		Tempo:          p.Tempo,
		TicksPerBeat:   p.TicksPerBeat,
		BeatsPerBar:    p.BeatsPerBar,
		PixelsPerBeat:  p.PixelsPerBeat,
		HorizontalZoom: p.HorizontalZoom,
		VerticalZoom:   s.VerticalZoom(),
		SnapPerBeat:    p.SnapPerBeat,
	}
	for i, t := range s.Tracks() {
		var n yaml.Node
		if err := t.SaveElement(doc, &n); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		e.Tracks = append(e.Tracks, n)
	}
	if err := elem.Encode(&e); err != nil {
		return fmt.Errorf("encoding session element: %w", err)
	}
	return nil
}

// LoadElement fills an unregistered track from elem. A missing id gets a
// fresh one.
func (t *Track) LoadElement(doc *Document, elem *yaml.Node) error {
	var e TrackElement
	if err := elem.Decode(&e); err != nil {
		return fmt.Errorf("decoding track element: %w", err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	*t = Track{id: e.ID, name: e.Name, typ: e.Type, midiTag: -1}
	t.SetMidiChannel(e.MidiChannel)
	t.mute.Store(e.Mute)
	t.solo.Store(e.Solo)
	for _, c := range e.Clips {
		t.AddClip(c)
	}
	return nil
}

// SaveElement stores the track into elem.
func (t *Track) SaveElement(doc *Document, elem *yaml.Node) error {
	e := TrackElement{
		ID:          t.id,
		Name:        t.name,
		Type:        t.typ,
		MidiChannel: t.midiChannel,
		Mute:        t.IsMute(),
		Solo:        t.IsSolo(),
		Clips:       t.clips,
	}
	return elem.Encode(&e)
}

// Read loads the session from r. Both YAML and JSON are accepted.
func (d *Document) Read(r io.Reader, s *Session) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading session document: %w", err)
	}
	var n yaml.Node
	if err := yaml.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("parsing session document: %w", err)
	}
	return s.LoadElement(d, &n)
}

// Write saves the session to w, as JSON if the document path ends in .json
// and as YAML otherwise.
func (d *Document) Write(w io.Writer, s *Session) error {
	var n yaml.Node
	if err := s.SaveElement(d, &n); err != nil {
		return err
	}
	var contents []byte
	var err error
	if filepath.Ext(d.Path) == ".json" {
		var v any
		if err = n.Decode(&v); err == nil {
			contents, err = json.MarshalIndent(v, "", "  ")
		}
	} else {
		contents, err = yaml.Marshal(&n)
	}
	if err != nil {
		return fmt.Errorf("marshaling session document: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("writing session document: %w", err)
	}
	return nil
}

// Load reads the session from the document path.
func (d *Document) Load(s *Session) error {
	f, err := os.Open(d.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return d.Read(f, s)
}

// Save writes the session to the document path.
func (d *Document) Save(s *Session) (err error) {
	f, err := os.Create(d.Path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return d.Write(f, s)
}
