package midi

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"

	"melody-sketch/sequencer"
)

type fakePort struct {
	name string

	mu     sync.Mutex
	open   bool
	closes int
}

func (p *fakePort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.closes++
	return nil
}

func (p *fakePort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *fakePort) Number() int { return 0 }
func (p *fakePort) String() string { return p.name }
func (p *fakePort) Underlying() interface{} { return nil }

type fakeOut struct {
	fakePort
	sent [][]byte
}

func (o *fakeOut) Send(b []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, append([]byte(nil), b...))
	return nil
}

func (o *fakeOut) messages() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]byte(nil), o.sent...)
}

type fakeIn struct {
	fakePort
	onMsg func([]byte, int32)
}

func (i *fakeIn) Listen(onMsg func([]byte, int32), _ drivers.ListenConfig) (func(), error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onMsg = onMsg
	return func() {
		i.mu.Lock()
		i.onMsg = nil
		i.mu.Unlock()
	}, nil
}

func (i *fakeIn) press(b ...byte) {
	i.mu.Lock()
	f := i.onMsg
	i.mu.Unlock()
	if f != nil {
		f(b, 0)
	}
}

// fakePorts swaps the port listings for the duration of a test
type fakePorts struct {
	mu   sync.Mutex
	outs []drivers.Out
	ins  []drivers.In
}

func installPorts(t *testing.T) *fakePorts {
	t.Helper()
	fp := &fakePorts{}
	origOut, origIn := getOutPorts, getInPorts
	getOutPorts = func() []drivers.Out {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return append([]drivers.Out(nil), fp.outs...)
	}
	getInPorts = func() []drivers.In {
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return append([]drivers.In(nil), fp.ins...)
	}
	t.Cleanup(func() { getOutPorts, getInPorts = origOut, origIn })
	return fp
}

func (fp *fakePorts) set(outs []drivers.Out, ins []drivers.In) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.outs, fp.ins = outs, ins
}

func nextEvent(t *testing.T, dm *DeviceManager) DeviceEvent {
	t.Helper()
	select {
	case ev := <-dm.Events():
		return ev
	default:
		t.Fatal("no device event")
		return DeviceEvent{}
	}
}

func TestDeviceManagerOutputHotPlug(t *testing.T) {
	fp := installPorts(t)
	dm := NewDeviceManager("synth", "", &fakeClock{}, 2)

	dm.scan()
	if len(dm.Events()) != 0 || dm.Output() != "" {
		t.Fatal("connected with no ports")
	}

	synth := &fakeOut{fakePort: fakePort{name: "USB Synth"}}
	other := &fakeOut{fakePort: fakePort{name: "Through"}}
	fp.set([]drivers.Out{other, synth}, nil)
	dm.scan()

	ev := nextEvent(t, dm)
	if ev.Type != DeviceConnected || ev.Name != "USB Synth" || ev.Sink == nil || ev.Input {
		t.Fatalf("event = %+v", ev)
	}
	if !synth.IsOpen() || other.IsOpen() {
		t.Error("wrong port opened")
	}
	if err := ev.Sink.SetTone("piano"); err != nil {
		t.Fatal(err)
	}
	if got := synth.messages(); len(got) != 1 || !bytes.Equal(got[0], []byte{0xC2, 0}) {
		t.Errorf("sent %x, want program change on channel 3", got)
	}

	dm.scan()
	if len(dm.Events()) != 0 {
		t.Error("rescan of an unchanged port emitted an event")
	}

	fp.set([]drivers.Out{other}, nil)
	dm.scan()
	ev = nextEvent(t, dm)
	if ev.Type != DeviceDisconnected || ev.Name != "USB Synth" {
		t.Fatalf("event = %+v", ev)
	}
	if synth.closes != 1 || dm.Output() != "" {
		t.Errorf("closes = %d, output = %q", synth.closes, dm.Output())
	}

	fp.set([]drivers.Out{synth}, nil)
	dm.scan()
	if ev := nextEvent(t, dm); ev.Type != DeviceConnected || dm.Output() != "USB Synth" {
		t.Errorf("reconnect event = %+v", ev)
	}
}

func TestDeviceManagerKeyboardSurvivesReconnect(t *testing.T) {
	fp := installPorts(t)
	kbd := &fakeIn{fakePort: fakePort{name: "Keystation"}}
	fp.set(nil, []drivers.In{kbd})
	dm := NewDeviceManager("", "key", &fakeClock{}, 0)

	dm.scan()
	if ev := nextEvent(t, dm); ev.Type != DeviceConnected || !ev.Input {
		t.Fatalf("event = %+v", ev)
	}
	kbd.press(0x90, 60, 100)
	if ev := <-dm.NoteEvents(); ev.Note != 60 || ev.Velocity != 100 {
		t.Errorf("note = %+v", ev)
	}

	fp.set(nil, nil)
	dm.scan()
	if ev := nextEvent(t, dm); ev.Type != DeviceDisconnected || !ev.Input {
		t.Fatalf("event = %+v", ev)
	}
	if kbd.IsOpen() {
		t.Error("keyboard port left open")
	}

	fp.set(nil, []drivers.In{kbd})
	dm.scan()
	nextEvent(t, dm)
	kbd.press(0x91, 64, 80)
	if ev := <-dm.NoteEvents(); ev != (NoteEvent{Note: 64, Velocity: 80, Channel: 1}) {
		t.Errorf("note after reconnect = %+v", ev)
	}
}

type sinkLog struct {
	mu    sync.Mutex
	sinks []sequencer.NoteSink
	seen  chan struct{}
}

func (s *sinkLog) SetSink(sink sequencer.NoteSink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func TestRunFeedsSinkChanges(t *testing.T) {
	fp := installPorts(t)
	synth := &fakeOut{fakePort: fakePort{name: "Synth"}}
	fp.set([]drivers.Out{synth}, nil)

	dm := NewDeviceManager("", "", &fakeClock{}, 0)
	dm.pollRate = 5 * time.Millisecond
	target := &sinkLog{seen: make(chan struct{}, 4)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go dm.Run(ctx)
	go func() {
		dm.Follow(target)
		close(done)
	}()

	wait := func() {
		t.Helper()
		select {
		case <-target.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("no sink change")
		}
	}

	wait()
	fp.set(nil, nil)
	wait()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after Run stopped")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.sinks) != 2 {
		t.Fatalf("sink changes = %d, want 2", len(target.sinks))
	}
	if _, ok := target.sinks[0].(*OutputSink); !ok {
		t.Errorf("first sink = %T, want *OutputSink", target.sinks[0])
	}
	if target.sinks[1] != nil {
		t.Errorf("sink after unplug = %v, want nil", target.sinks[1])
	}
	if _, ok := <-dm.NoteEvents(); ok {
		t.Error("note channel still open after Run")
	}
}
