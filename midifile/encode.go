// Package midifile writes and reads the single-track Standard MIDI Files
// melody-sketch exports.
package midifile

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"melody-sketch/notes"
)

const (
	// Division is the file's ticks per quarter note
	Division = 480

	// TicksPerStep is one 16th note
	TicksPerStep = Division / 4

	// NoteVelocity is used for every exported Note-On
	NoteVelocity = 100

	defaultBPM = 120

	FileName = "melody_sketch.mid"
	MIMEType = "audio/midi"
)

type event struct {
	tick uint32
	msg  []byte
}

// Build lays notes out as a format 0 SMF with a single tempo meta.
// Events are ordered by absolute tick, ties kept in note order, and
// running status is never used. bpm <= 0 falls back to 120.
func Build(in []notes.Note, bpm int) *smf.SMF {
	if bpm <= 0 {
		bpm = defaultBPM
	}

	events := make([]event, 0, 2*len(in))
	for _, n := range in {
		key := uint8(n.Pitch)
		on := uint32(n.Start * TicksPerStep)
		off := uint32(math.Round((float64(n.Start) + n.Duration) * TicksPerStep))
		if off < on {
			off = on
		}
		events = append(events,
			event{on, midi.NoteOn(0, key, NoteVelocity)},
			event{off, midi.NoteOff(0, key)},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	var track smf.Track
	track.Add(0, smf.MetaTempo(float64(bpm)))
	var last uint32
	for _, ev := range events {
		track.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	track.Close(0)

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(Division)
	sm.NoRunningStatus = true
	sm.Add(track)
	return sm
}

// Encode serializes notes as a format 0 SMF at a constant tempo
func Encode(in []notes.Note, bpm int) []byte {
	// a closed track is always present, so Bytes cannot fail
	data, _ := Build(in, bpm).Bytes()
	return data
}

// WriteFile encodes notes and writes them to path
func WriteFile(path string, in []notes.Note, bpm int) error {
	if err := Build(in, bpm).WriteFile(path); err != nil {
		return fmt.Errorf("write midi file: %w", err)
	}
	return nil
}
