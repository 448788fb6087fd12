package sequencer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	DefaultTempo = 120
	MinTempo     = 20
	MaxTempo     = 300
)

// ErrInvalidTempo is returned for tempos that would break the step math
var ErrInvalidTempo = errors.New("invalid tempo")

// Tempo is the process-wide BPM shared by playback and export.
// Every value it holds is within [MinTempo, MaxTempo].
type Tempo struct {
	bpm atomic.Int64
}

// NewTempo creates a tempo, falling back to DefaultTempo for unusable values
func NewTempo(bpm int) *Tempo {
	t := &Tempo{}
	if err := t.Set(bpm); err != nil {
		t.bpm.Store(DefaultTempo)
	}
	return t
}

// BPM returns the current tempo
func (t *Tempo) BPM() int {
	return int(t.bpm.Load())
}

// Set validates and stores a tempo. Non-positive values are rejected,
// anything else is clamped to the supported range.
func (t *Tempo) Set(bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: %d bpm", ErrInvalidTempo, bpm)
	}
	t.bpm.Store(int64(ClampTempo(bpm)))
	return nil
}

// Adjust nudges the tempo by delta, staying in range
func (t *Tempo) Adjust(delta int) int {
	bpm := ClampTempo(t.BPM() + delta)
	t.bpm.Store(int64(bpm))
	return bpm
}

// ClampTempo limits bpm to [MinTempo, MaxTempo]
func ClampTempo(bpm int) int {
	if bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}
	return bpm
}

// ParseTempo reads a tempo typed by the user. Fractions are rounded.
func ParseTempo(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTempo, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTempo, s)
	}
	bpm := int(math.Round(f))
	if bpm <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTempo, s)
	}
	return ClampTempo(bpm), nil
}

// StepDuration is the length of one 16th note in seconds
func StepDuration(bpm int) float64 {
	return 0.25 * (60.0 / float64(bpm))
}
