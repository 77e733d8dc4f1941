package tractor

import (
	"sync"

	"github.com/viterin/vek/vek32"
)

type (
	// Peak is the minimum and maximum sample of one channel over one period.
	Peak struct {
		Min, Max float32
	}

	// PeakFactory computes and caches the overview peaks drawn for audio
	// clips. It is owned by the session and shared by reference with whoever
	// needs peaks; entries are reference counted by key.
	PeakFactory struct {
		mu      sync.Mutex
		period  int
		entries map[string]*peakEntry
		tmp     []float32
	}

	peakEntry struct {
		refs     int
		channels int
		peaks    []Peak
	}
)

// DefaultPeakPeriod is the number of frames summarized by one peak.
const DefaultPeakPeriod = 256

// NewPeakFactory returns a factory summarizing period frames per peak.
func NewPeakFactory(period int) *PeakFactory {
	if period <= 0 {
		period = DefaultPeakPeriod
	}
	return &PeakFactory{period: period, entries: make(map[string]*peakEntry)}
}

// Period returns the number of frames per peak.
func (f *PeakFactory) Period() int { return f.period }

// Peaks returns the peaks of the interleaved samples, computing them on first
// use of key and taking a reference. The result is laid out as
// peaks[period*channels+channel] and must not be modified.
func (f *PeakFactory) Peaks(key string, samples []float32, channels int) []Peak {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[key]; ok {
		e.refs++
		return e.peaks
	}
	if channels <= 0 {
		channels = 1
	}
	e := &peakEntry{refs: 1, channels: channels, peaks: f.compute(samples, channels)}
	f.entries[key] = e
	return e.peaks
}

func (f *PeakFactory) compute(samples []float32, channels int) []Peak {
	frames := len(samples) / channels
	periods := (frames + f.period - 1) / f.period
	ret := make([]Peak, 0, periods*channels)
	if cap(f.tmp) < f.period {
		f.tmp = make([]float32, f.period)
	}
	for p := 0; p < periods; p++ {
		start := p * f.period
		end := min(start+f.period, frames)
		for ch := 0; ch < channels; ch++ {
			buf := f.tmp[:end-start]
			for i := range buf {
				buf[i] = samples[(start+i)*channels+ch]
			}
			ret = append(ret, Peak{Min: vek32.Min(buf), Max: vek32.Max(buf)})
		}
	}
	return ret
}

// Release drops one reference to key, evicting the peaks when none remain.
func (f *PeakFactory) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return
	}
	if e.refs--; e.refs <= 0 {
		delete(f.entries, key)
	}
}

// Len returns the number of cached keys.
func (f *PeakFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Clear drops every cached entry regardless of references.
func (f *PeakFactory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.entries)
}
