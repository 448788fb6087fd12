package midi

import (
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

func TestKeyboardForwardsNoteOn(t *testing.T) {
	kb := newKeyboard("test", nil)
	kb.handle(gomidi.NoteOn(3, 64, 90))
	kb.handle(gomidi.NoteOn(3, 65, 0)) // running-status note off
	kb.handle(gomidi.NoteOff(3, 64))
	kb.handle(gomidi.ControlChange(3, 1, 10))

	if n := len(kb.NoteEvents()); n != 1 {
		t.Fatalf("queued %d events, want 1", n)
	}
	ev := <-kb.NoteEvents()
	if ev != (NoteEvent{Note: 64, Velocity: 90, Channel: 3}) {
		t.Errorf("event = %+v", ev)
	}
}

func TestKeyboardDropsWhenFull(t *testing.T) {
	kb := newKeyboard("test", nil)
	for i := 0; i < cap(kb.noteChan)+10; i++ {
		kb.handle(gomidi.NoteOn(0, 60, 100))
	}
	if n := len(kb.NoteEvents()); n != cap(kb.noteChan) {
		t.Errorf("queued %d events, want %d", n, cap(kb.noteChan))
	}
	kb.Close()
}

func TestOpenKeyboardNoInputs(t *testing.T) {
	orig := getInPorts
	getInPorts = func() []drivers.In { return nil }
	defer func() { getInPorts = orig }()

	if _, err := OpenKeyboard(""); !errors.Is(err, ErrPortNotFound) {
		t.Errorf("err = %v, want ErrPortNotFound", err)
	}
}
