package midi

import (
	"sync"
	"time"

	"melody-sketch/debug"
	"melody-sketch/theory"
)

// Tones the editor offers, in cycling order
var Tones = []string{"triangle", "sine", "square", "sawtooth", "piano"}

// General MIDI programs (0-based) standing in for each tone
var tonePrograms = map[string]uint8{
	"triangle": 79, // Ocarina
	"sine":     73, // Flute
	"square":   80, // Lead 1 (square)
	"sawtooth": 81, // Lead 2 (sawtooth)
	"piano":    0,  // Acoustic Grand
}

// ProgramForTone maps a tone name to its GM program
func ProgramForTone(tone string) (uint8, bool) {
	p, ok := tonePrograms[tone]
	return p, ok
}

// Clock is the time base scheduled notes are stamped against (seconds)
type Clock interface {
	Now() float64
}

// OutputSink plays scheduled notes on a MIDI output. Note-On and Note-Off
// are sent from timers at the requested clock times, so ScheduleNote never
// blocks.
type OutputSink struct {
	send    Sender
	clock   Clock
	channel uint8

	mu   sync.Mutex
	gen  uint64
	held [128]int // overlapping notes per key

	afterFunc func(d time.Duration, f func())
}

// NewOutputSink creates a sink sending on channel (0-15)
func NewOutputSink(send Sender, clock Clock, channel uint8) *OutputSink {
	return &OutputSink{
		send:    send,
		clock:   clock,
		channel: channel & 0x0F,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// ScheduleNote implements sequencer.NoteSink
func (o *OutputSink) ScheduleNote(freq, start, duration float64) {
	key := theory.PitchFromFrequency(freq)
	delay := start - o.clock.Now()

	o.mu.Lock()
	gen := o.gen
	o.mu.Unlock()

	o.at(delay, func() { o.noteOn(gen, key) })
	o.at(delay+duration, func() { o.noteOff(gen, key) })
}

// SetTone selects the GM program for tone. Unknown tones are ignored.
func (o *OutputSink) SetTone(tone string) error {
	p, ok := ProgramForTone(tone)
	if !ok {
		return nil
	}
	debug.Log("midi", "program change %d (%s)", p, tone)
	return o.write(Event{Type: ProgramChange, Channel: o.channel, Note: p})
}

// Silence drops everything still pending and releases held keys
func (o *OutputSink) Silence() {
	o.mu.Lock()
	o.gen++
	var release []uint8
	for k, n := range o.held {
		if n > 0 {
			release = append(release, uint8(k))
		}
	}
	o.held = [128]int{}
	o.mu.Unlock()

	for _, k := range release {
		o.write(Event{Type: NoteOff, Channel: o.channel, Note: k})
	}
	o.write(Event{Type: CC, Channel: o.channel, Note: ccAllNotesOff})
}

func (o *OutputSink) at(delay float64, f func()) {
	if delay <= 0 {
		f()
		return
	}
	o.afterFunc(time.Duration(delay*float64(time.Second)), f)
}

func (o *OutputSink) noteOn(gen uint64, key uint8) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.held[key]++
	o.mu.Unlock()

	o.write(Event{Type: NoteOn, Channel: o.channel, Note: key, Velocity: 100})
}

// noteOff only releases the key once every overlapping Note-On has ended,
// so a retrigger on the same key is not cut short.
func (o *OutputSink) noteOff(gen uint64, key uint8) {
	o.mu.Lock()
	if gen != o.gen || o.held[key] == 0 {
		o.mu.Unlock()
		return
	}
	o.held[key]--
	last := o.held[key] == 0
	o.mu.Unlock()

	if last {
		o.write(Event{Type: NoteOff, Channel: o.channel, Note: key})
	}
}

func (o *OutputSink) write(e Event) error {
	if o.send == nil {
		return nil
	}
	if err := o.send(e.Message()); err != nil {
		debug.LogEvery(32, "midi", "send failed: %v", err)
		return err
	}
	return nil
}
