package midifile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	"melody-sketch/notes"
)

var ErrUnsupportedTiming = errors.New("midi file does not use metric ticks")

// Melody is what an imported file contributes to a session
type Melody struct {
	Notes []notes.Note
	BPM   int // 0 when the file carries no tempo
}

// Decode reads a Standard MIDI File and converts its notes to grid steps.
// Notes on every track and channel are merged. Starts are rounded to the
// nearest step and durations are at least a quarter step.
func Decode(r io.Reader) (Melody, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return Melody{}, fmt.Errorf("parse midi: %w", err)
	}
	ticks, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok || ticks.Resolution() == 0 {
		return Melody{}, ErrUnsupportedTiming
	}
	perStep := float64(ticks.Resolution()) / 4

	var m Melody
	for _, tr := range sm.Tracks {
		var abs uint64
		// ticks of sounding Note-Ons per key, oldest first
		open := map[uint8][]uint64{}
		for _, ev := range tr {
			abs += uint64(ev.Delta)

			var ch, key, vel uint8
			var bpm float64
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if m.BPM == 0 && bpm > 0 {
					m.BPM = int(math.Round(bpm))
				}
			case ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0:
				open[key] = append(open[key], abs)
			case ev.Message.GetNoteOff(&ch, &key, &vel), ev.Message.GetNoteOn(&ch, &key, &vel):
				if len(open[key]) == 0 {
					continue
				}
				on := open[key][0]
				open[key] = open[key][1:]
				m.Notes = append(m.Notes, toNote(key, on, abs, perStep))
			}
		}
	}
	return m, nil
}

// ReadFile decodes the file at path
func ReadFile(path string) (Melody, error) {
	f, err := os.Open(path)
	if err != nil {
		return Melody{}, fmt.Errorf("open midi file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func toNote(key uint8, on, off uint64, perStep float64) notes.Note {
	dur := float64(off-on) / perStep
	if dur < 0.25 {
		dur = 0.25
	}
	return notes.Note{
		Pitch:    int(key),
		Start:    int(math.Round(float64(on) / perStep)),
		Duration: dur,
	}
}
