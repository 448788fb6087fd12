package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"melody-sketch/midi"
	"melody-sketch/midifile"
	"melody-sketch/sequencer"
	"melody-sketch/theory"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "dump":
		if len(os.Args) < 3 {
			usage()
			return
		}
		dumpFile(os.Args[2])
	case "note":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		pitch := 60
		if len(os.Args) > 3 {
			if p, err := strconv.Atoi(os.Args[3]); err == nil {
				pitch = p
			}
		}
		testNote(port, pitch)
	case "scale":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		testScale(port)
	case "keys":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		watchKeys(port)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                  - List MIDI output ports")
	fmt.Println("  dump <file.mid>       - Print the notes a MIDI file imports as")
	fmt.Println("  note [port] [pitch]   - Send one note (default middle C)")
	fmt.Println("  scale [port]          - Play a C major scale through the scheduler")
	fmt.Println("  keys [port]           - Print key presses from a MIDI keyboard for 10s")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	names, err := midi.ListOutputs()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
}

func dumpFile(path string) {
	mel, err := midifile.ReadFile(path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("%s: %d notes, %d bpm\n", path, len(mel.Notes), mel.BPM)
	for _, n := range mel.Notes {
		marker := ""
		if n.Start >= sequencer.NumSteps {
			marker = "  (past the grid, dropped on import)"
		}
		fmt.Printf("  step %3d  %-4s  %5.2f steps%s\n", n.Start, theory.NoteName(n.Pitch), n.Duration, marker)
	}
}

func testNote(port string, pitch int) {
	send, name, err := midi.OpenOutput(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Using output: %s\n", name)

	key := uint8(pitch & 0x7F)
	fmt.Printf("Note on %s\n", theory.NoteName(int(key)))
	if err := send(gomidi.NoteOn(0, key, midifile.NoteVelocity)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	time.Sleep(500 * time.Millisecond)
	send(gomidi.NoteOff(0, key))

	fmt.Println("Done!")
}

func testScale(port string) {
	send, name, err := midi.OpenOutput(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Using output: %s\n", name)

	clock := sequencer.NewSystemClock()
	sink := midi.NewOutputSink(send, clock, 0)
	mgr := sequencer.NewManager(sequencer.Options{Clock: clock, Sink: sink})

	for i, p := range []int{60, 62, 64, 65, 67, 69, 71, 72} {
		mgr.Store().AddNote(p, i*2, 2)
	}

	loop := time.Duration(float64(16) * sequencer.StepDuration(mgr.Tempo().BPM()) * float64(time.Second))
	mgr.Play()
	time.Sleep(loop + 200*time.Millisecond)
	mgr.Stop()

	fmt.Println("Done!")
}

func watchKeys(port string) {
	kb, err := midi.OpenKeyboard(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer kb.Close()
	fmt.Printf("Listening on: %s\n", kb.Name())

	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-kb.NoteEvents():
			fmt.Printf("  ch %2d  %-4s  vel %d\n", ev.Channel+1, theory.NoteName(int(ev.Note)), ev.Velocity)
		case <-timeout:
			fmt.Println("Done!")
			return
		}
	}
}
