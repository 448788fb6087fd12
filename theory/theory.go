// Package theory holds pitch naming, tuning and scale helpers for the grid.
package theory

import (
	"fmt"
	"math"
)

// NoteNames indexed by pitch class
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Scale intervals in semitones from the root
var Scales = map[string][]int{
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10}, // natural minor
	"dorian":     {0, 2, 3, 5, 7, 9, 10},
	"phrygian":   {0, 1, 3, 5, 7, 8, 10},
	"lydian":     {0, 2, 4, 6, 7, 9, 11},
	"mixolydian": {0, 2, 4, 5, 7, 9, 10},
	"locrian":    {0, 1, 3, 5, 6, 8, 10},
	"chromatic":  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// ScaleOrder is the cycling order used by the editor
var ScaleOrder = []string{"major", "minor", "dorian", "phrygian", "lydian", "mixolydian", "locrian", "chromatic"}

// NoteName formats a MIDI pitch as e.g. "C4" (middle C = 60)
func NoteName(pitch int) string {
	if pitch < 0 {
		return "?"
	}
	return fmt.Sprintf("%s%d", NoteNames[pitch%12], pitch/12-1)
}

// RootIndex returns the pitch class of a root name, or -1
func RootIndex(root string) int {
	for i, n := range NoteNames {
		if n == root {
			return i
		}
	}
	return -1
}

// InScale reports whether pitch belongs to the scale built on root.
// Unknown roots or scales highlight everything.
func InScale(pitch int, root, scale string) bool {
	if scale == "chromatic" {
		return true
	}
	intervals, ok := Scales[scale]
	if !ok {
		return true
	}
	key := RootIndex(root)
	if key < 0 {
		return true
	}

	rel := (pitch%12 - key + 12) % 12
	for _, iv := range intervals {
		if iv == rel {
			return true
		}
	}
	return false
}

// Frequency converts a MIDI pitch to Hz using 12-TET with A4 = 440
func Frequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// PitchFromFrequency is the inverse of Frequency, rounded to the nearest semitone
// and clamped to the MIDI range.
func PitchFromFrequency(freq float64) uint8 {
	if freq <= 0 || math.IsNaN(freq) {
		return 0
	}
	p := math.Round(69 + 12*math.Log2(freq/440))
	if p < 0 {
		return 0
	}
	if p > 127 {
		return 127
	}
	return uint8(p)
}
