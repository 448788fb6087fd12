package sequencer

import (
	"slices"

	"melody-sketch/notes"
	"melody-sketch/theory"
)

// Tool is what a grid click does
type Tool string

const (
	ToolDraw  Tool = "draw"
	ToolErase Tool = "erase"
)

const (
	MinBars     = 1
	MaxBars     = NumSteps / 16
	StepsPerBar = 16
)

// BaseDurations are the selectable note lengths in 16ths:
// 16th, 8th, quarter, half, whole
var BaseDurations = []int{1, 2, 4, 8, 16}

// Selections are the editor choices that persist between sessions
type Selections struct {
	Bars         int    `json:"bars"`
	Root         string `json:"root"`
	Scale        string `json:"scale"`
	Tone         string `json:"tone"`
	BaseDuration int    `json:"baseDuration"`
	Dotted       bool   `json:"dotted"`
	Tool         Tool   `json:"tool"`
}

// DefaultSelections returns the selections a fresh session starts with
func DefaultSelections() Selections {
	return Selections{
		Bars:         MaxBars,
		Root:         "C",
		Scale:        "major",
		Tone:         "triangle",
		BaseDuration: 2,
		Tool:         ToolDraw,
	}
}

// NoteDuration is the length a drawn note gets, in 16ths
func (s Selections) NoteDuration() float64 {
	d := float64(s.BaseDuration)
	if s.Dotted {
		d *= 1.5
	}
	return d
}

// VisibleSteps is how many grid columns are shown
func (s Selections) VisibleSteps() int {
	return s.Bars * StepsPerBar
}

// normalize replaces anything out of range with its default
func (s *Selections) normalize() {
	d := DefaultSelections()
	if s.Bars < MinBars || s.Bars > MaxBars {
		s.Bars = d.Bars
	}
	if theory.RootIndex(s.Root) < 0 {
		s.Root = d.Root
	}
	if _, ok := theory.Scales[s.Scale]; !ok {
		s.Scale = d.Scale
	}
	if s.Tone == "" {
		s.Tone = d.Tone
	}
	if !slices.Contains(BaseDurations, s.BaseDuration) {
		s.BaseDuration = d.BaseDuration
	}
	if s.Tool != ToolDraw && s.Tool != ToolErase {
		s.Tool = d.Tool
	}
}

// State is everything persisted between sessions
type State struct {
	Notes []notes.Note `json:"notes"`
	Tempo int          `json:"tempo"`
	UI    Selections   `json:"ui"`
}

// NewState creates a state with defaults
func NewState() *State {
	return &State{
		Notes: []notes.Note{},
		Tempo: DefaultTempo,
		UI:    DefaultSelections(),
	}
}

// normalize repairs fields a hand-edited or older file may get wrong.
// Invalid notes are left for notes.Store.Load to drop.
func (s *State) normalize() {
	if s.Tempo <= 0 {
		s.Tempo = DefaultTempo
	}
	s.Tempo = ClampTempo(s.Tempo)
	if s.Notes == nil {
		s.Notes = []notes.Note{}
	}
	s.UI.normalize()
}

// next returns the element after cur in list, wrapping; unknown cur starts at 0
func next[T comparable](list []T, cur T) T {
	i := slices.Index(list, cur)
	return list[(i+1)%len(list)]
}
