package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrNoOutputs    = errors.New("no MIDI output ports")
	ErrPortNotFound = errors.New("MIDI output port not found")
	ErrScanTimeout  = errors.New("MIDI port scan timed out")
)

// scanTimeout bounds port enumeration (CoreMIDI can hang)
const scanTimeout = 3 * time.Second

// Sender writes one message to an open port
type Sender func(gomidi.Message) error

var getOutPorts = func() []drivers.Out { return gomidi.GetOutPorts() }

func scanOutputs() ([]drivers.Out, error) {
	return withTimeout(getOutPorts)
}

// ListOutputs returns the names of the available output ports
func ListOutputs() ([]string, error) {
	outs, err := scanOutputs()
	if err != nil {
		return nil, err
	}
	return portNames(outs), nil
}

// OpenOutput opens the output port matching name and returns its sender
// and full name. An exact match wins over a case-insensitive substring
// match. An empty name selects the first port.
func OpenOutput(name string) (Sender, string, error) {
	outs, err := scanOutputs()
	if err != nil {
		return nil, "", err
	}
	if len(outs) == 0 {
		return nil, "", ErrNoOutputs
	}

	idx := matchPort(portNames(outs), name)
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}

	send, err := gomidi.SendTo(outs[idx])
	if err != nil {
		return nil, "", fmt.Errorf("open output %q: %w", outs[idx].String(), err)
	}
	return send, outs[idx].String(), nil
}

func portNames(outs []drivers.Out) []string {
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names
}

func matchPort(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	for i, n := range names {
		if n == want {
			return i
		}
	}
	lw := strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return i
		}
	}
	return -1
}
