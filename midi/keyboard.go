package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// NoteEvent is sent when a key is pressed on a keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}

// Keyboard forwards key presses from a MIDI input for step entry
type Keyboard struct {
	name     string
	port     drivers.In
	stopFunc func()
	noteChan chan NoteEvent
	shared   bool // noteChan belongs to a DeviceManager
}

var getInPorts = func() []drivers.In { return gomidi.GetInPorts() }

// OpenKeyboard listens on the input port matching name, using the same
// matching rules as OpenOutput.
func OpenKeyboard(name string) (*Keyboard, error) {
	ins := getInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrPortNotFound)
	}
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}
	idx := matchPort(names, name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}

	kb := newKeyboard(names[idx], nil)
	if err := kb.listen(ins[idx]); err != nil {
		return nil, err
	}
	return kb, nil
}

// newKeyboard queues into ch when given, else into a channel of its own
func newKeyboard(name string, ch chan NoteEvent) *Keyboard {
	kb := &Keyboard{name: name, noteChan: ch, shared: ch != nil}
	if ch == nil {
		kb.noteChan = make(chan NoteEvent, 32)
	}
	return kb
}

func (kb *Keyboard) listen(in drivers.In) error {
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		kb.handle(msg)
	})
	if err != nil {
		return fmt.Errorf("open input %q: %w", in.String(), err)
	}
	kb.port = in
	kb.stopFunc = stop
	return nil
}

// handle drops the event when the reader falls behind
func (kb *Keyboard) handle(msg gomidi.Message) {
	var channel, note, velocity uint8
	if msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0 {
		select {
		case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
		default:
		}
	}
}

func (kb *Keyboard) Name() string {
	return kb.name
}

func (kb *Keyboard) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *Keyboard) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	if !kb.shared {
		close(kb.noteChan)
	}
	if kb.port != nil {
		return kb.port.Close()
	}
	return nil
}
