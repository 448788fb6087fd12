package midi

import gomidi "gitlab.com/gomidi/midi/v2"

// MIDI message types
const (
	NoteOn        uint8 = 0x90
	NoteOff       uint8 = 0x80
	CC            uint8 = 0xB0
	ProgramChange uint8 = 0xC0
)

const ccAllNotesOff uint8 = 123

// Event is a channel message queued for output
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC, ProgramChange
	Channel  uint8 // 0-15
	Note     uint8 // controller number for CC, program for ProgramChange
	Velocity uint8 // value for CC
}

// Message encodes the event. Unknown types yield nil.
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	case ProgramChange:
		return gomidi.ProgramChange(e.Channel, e.Note)
	}
	return nil
}
