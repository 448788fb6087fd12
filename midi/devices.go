package midi

import (
	"context"
	"slices"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"melody-sketch/debug"
	"melody-sketch/sequencer"
)

// DeviceEvent is emitted when the output or the step-entry keyboard
// connects or disconnects
type DeviceEvent struct {
	Type  DeviceEventType
	Name  string
	Input bool        // keyboard rather than output
	Sink  *OutputSink // set when an output connects
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// SinkSetter takes the output sink as it comes and goes
type SinkSetter interface {
	SetSink(sequencer.NoteSink)
}

// DeviceManager handles hot-plug of the output port and the keyboard.
// Key presses reach NoteEvents across reconnects.
type DeviceManager struct {
	outWant string
	inWant  string // empty disables the keyboard
	clock   Clock
	channel uint8

	mu       sync.Mutex
	outName  string
	outPort  drivers.Out
	keyboard *Keyboard

	notes    chan NoteEvent
	events   chan DeviceEvent
	pollRate time.Duration
}

// NewDeviceManager watches for the output matching output and, when input
// is not empty, the keyboard matching input. Names match as in OpenOutput.
func NewDeviceManager(output, input string, clock Clock, channel uint8) *DeviceManager {
	return &DeviceManager{
		outWant:  output,
		inWant:   input,
		clock:    clock,
		channel:  channel & 0x0F,
		notes:    make(chan NoteEvent, 32),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// NoteEvents returns key presses from whichever keyboard is connected
func (dm *DeviceManager) NoteEvents() <-chan NoteEvent {
	return dm.notes
}

// Output returns the connected output name, empty when none
func (dm *DeviceManager) Output() string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.outName
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			close(dm.notes)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// Follow hands every output change to target until Run returns
func (dm *DeviceManager) Follow(target SinkSetter) {
	for ev := range dm.events {
		switch {
		case ev.Input && ev.Type == DeviceConnected:
			debug.Log("midi", "step entry from %s", ev.Name)
		case ev.Input:
			debug.Warn("midi", "keyboard %s gone", ev.Name)
		case ev.Type == DeviceConnected && ev.Sink != nil:
			debug.Log("midi", "output %s", ev.Name)
			target.SetSink(ev.Sink)
		case ev.Type == DeviceDisconnected:
			debug.Warn("midi", "output %s gone", ev.Name)
			target.SetSink(nil)
		}
	}
}

func (dm *DeviceManager) scan() {
	outs, err := withTimeout(getOutPorts)
	if err != nil {
		// CoreMIDI is hung - skip this scan
		debug.LogEvery(30, "midi", "output scan: %v", err)
		return
	}
	dm.syncOutput(outs)

	if dm.inWant == "" {
		return
	}
	ins, err := withTimeout(getInPorts)
	if err != nil {
		debug.LogEvery(30, "midi", "input scan: %v", err)
		return
	}
	dm.syncKeyboard(ins)
}

func (dm *DeviceManager) syncOutput(outs []drivers.Out) {
	names := portNames(outs)

	dm.mu.Lock()
	current, port := dm.outName, dm.outPort
	dm.mu.Unlock()

	if current != "" {
		if slices.Contains(names, current) {
			return
		}
		dm.mu.Lock()
		dm.outName, dm.outPort = "", nil
		dm.mu.Unlock()
		port.Close()
		dm.events <- DeviceEvent{Type: DeviceDisconnected, Name: current}
	}

	idx := matchPort(names, dm.outWant)
	if idx < 0 {
		return
	}
	send, err := gomidi.SendTo(outs[idx])
	if err != nil {
		debug.LogEvery(30, "midi", "open output %s: %v", names[idx], err)
		return
	}
	sink := NewOutputSink(send, dm.clock, dm.channel)

	dm.mu.Lock()
	dm.outName, dm.outPort = names[idx], outs[idx]
	dm.mu.Unlock()
	dm.events <- DeviceEvent{Type: DeviceConnected, Name: names[idx], Sink: sink}
}

func (dm *DeviceManager) syncKeyboard(ins []drivers.In) {
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}

	dm.mu.Lock()
	kb := dm.keyboard
	dm.mu.Unlock()

	if kb != nil {
		if slices.Contains(names, kb.Name()) {
			return
		}
		dm.mu.Lock()
		dm.keyboard = nil
		dm.mu.Unlock()
		kb.Close()
		dm.events <- DeviceEvent{Type: DeviceDisconnected, Name: kb.Name(), Input: true}
	}

	idx := matchPort(names, dm.inWant)
	if idx < 0 {
		return
	}
	kb = newKeyboard(names[idx], dm.notes)
	if err := kb.listen(ins[idx]); err != nil {
		debug.LogEvery(30, "midi", "%v", err)
		return
	}

	dm.mu.Lock()
	dm.keyboard = kb
	dm.mu.Unlock()
	dm.events <- DeviceEvent{Type: DeviceConnected, Name: kb.Name(), Input: true}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.keyboard != nil {
		dm.keyboard.Close()
		dm.keyboard = nil
	}
	if dm.outPort != nil {
		dm.outPort.Close()
		dm.outName, dm.outPort = "", nil
	}
}

// withTimeout runs a port listing, giving up after scanTimeout
func withTimeout[T any](list func() []T) ([]T, error) {
	ch := make(chan []T, 1)
	go func() {
		ch <- list()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(scanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrScanTimeout
	}
}
