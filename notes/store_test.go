package notes

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestAddNoteOverwrites(t *testing.T) {
	s := NewStore()
	if err := s.AddNote(60, 4, 2); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := s.AddNote(60, 4, 3); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	got := s.Notes()
	if len(got) != 1 {
		t.Fatalf("Len = %d, want 1", len(got))
	}
	if got[0].Duration != 3 {
		t.Errorf("Duration = %v, want 3", got[0].Duration)
	}
	if s.HistoryLen() != 2 {
		t.Errorf("HistoryLen = %d, want 2 (one per add)", s.HistoryLen())
	}
}

func TestAddNoteRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		pitch    int
		start    int
		duration float64
	}{
		{"pitch low", -1, 0, 1},
		{"pitch high", 128, 0, 1},
		{"negative start", 60, -1, 1},
		{"zero duration", 60, 0, 0},
		{"negative duration", 60, 0, -2},
		{"nan duration", 60, 0, math.NaN()},
		{"inf duration", 60, 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if err := s.AddNote(tt.pitch, tt.start, tt.duration); err != ErrInvalidNote {
				t.Errorf("err = %v, want ErrInvalidNote", err)
			}
			if s.Len() != 0 || s.HistoryLen() != 0 {
				t.Errorf("store changed: len=%d history=%d", s.Len(), s.HistoryLen())
			}
		})
	}
}

func TestRemoveNoteAt(t *testing.T) {
	s := NewStore()
	s.AddNote(60, 0, 4)
	s.AddNote(62, 0, 4)
	s.AddNote(60, 8, 4)

	s.RemoveNoteAt(60, 0)

	want := []Note{{Pitch: 62, Start: 0, Duration: 4}, {Pitch: 60, Start: 8, Duration: 4}}
	if got := s.Notes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Notes = %v, want %v", got, want)
	}
}

func TestUndoRestoresPriorState(t *testing.T) {
	s := NewStore()
	s.AddNote(60, 0, 4)
	s.AddNote(64, 4, 1.5)
	before := s.Notes()

	mutations := []struct {
		name string
		fn   func()
	}{
		{"add", func() { s.AddNote(67, 8, 2) }},
		{"overwrite", func() { s.AddNote(60, 0, 8) }},
		{"remove", func() { s.RemoveNoteAt(64, 4) }},
		{"clear", func() { s.Clear() }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			m.fn()
			if !s.Undo() {
				t.Fatal("Undo returned false")
			}
			if got := s.Notes(); !reflect.DeepEqual(got, before) {
				t.Errorf("after undo Notes = %v, want %v", got, before)
			}
		})
	}
}

func TestUndoEmptyIsNoop(t *testing.T) {
	s := NewStore()
	if s.Undo() {
		t.Error("Undo on empty history returned true")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestUndoDoesNotAliasHistory(t *testing.T) {
	s := NewStore()
	s.AddNote(60, 0, 4)
	s.AddNote(62, 1, 4)
	s.AddNote(64, 2, 4)

	s.Undo()
	// Mutating the restored state must leave the older snapshot intact.
	s.AddNote(70, 1, 4)
	s.Undo()
	s.Undo()

	want := []Note{{Pitch: 60, Start: 0, Duration: 4}}
	if got := s.Notes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Notes = %v, want %v", got, want)
	}
}

func TestNotesCopyIsIndependent(t *testing.T) {
	s := NewStore()
	s.AddNote(60, 0, 4)
	got := s.Notes()
	got[0].Pitch = 0

	if n, ok := s.NoteAt(60, 0); !ok || n.Pitch != 60 {
		t.Errorf("store was mutated through Notes() copy")
	}
}

func TestNotesAtStep(t *testing.T) {
	s := NewStore()
	s.AddNote(60, 0, 4)
	s.AddNote(64, 0, 4)
	s.AddNote(67, 3, 4)

	if got := len(s.NotesAtStep(0)); got != 2 {
		t.Errorf("NotesAtStep(0) len = %d, want 2", got)
	}
	if got := len(s.NotesAtStep(3)); got != 1 {
		t.Errorf("NotesAtStep(3) len = %d, want 1", got)
	}
	if got := s.NotesAtStep(40); len(got) != 0 {
		t.Errorf("NotesAtStep(40) = %v, want empty", got)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	s := NewStore()
	for i := 0; i < HistoryLimit+10; i++ {
		s.AddNote(60, i, 1)
	}
	if s.HistoryLen() != HistoryLimit {
		t.Fatalf("HistoryLen = %d, want %d", s.HistoryLen(), HistoryLimit)
	}

	for s.Undo() {
	}
	// The oldest 10 snapshots were evicted, so undo bottoms out with 10 notes left.
	if s.Len() != 10 {
		t.Errorf("Len after draining undo = %d, want 10", s.Len())
	}
}

func TestLoadDropsInvalidAndDedups(t *testing.T) {
	s := NewStore()
	s.AddNote(50, 0, 1)
	s.Load([]Note{
		{Pitch: 60, Start: 0, Duration: 4},
		{Pitch: 200, Start: 0, Duration: 4},
		{Pitch: 62, Start: 2, Duration: 0},
		{Pitch: 60, Start: 0, Duration: 2},
	})

	want := []Note{{Pitch: 60, Start: 0, Duration: 2}}
	if got := s.Notes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Notes = %v, want %v", got, want)
	}
	if s.HistoryLen() != 0 {
		t.Errorf("HistoryLen = %d, want 0", s.HistoryLen())
	}
}

func TestStoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("second add at same pitch/start wins", prop.ForAll(
		func(pitch, start int, d1, d2 float64) bool {
			s := NewStore()
			s.AddNote(pitch, start, d1)
			s.AddNote(pitch, start, d2)
			count := 0
			for _, n := range s.Notes() {
				if n.Pitch == pitch && n.Start == start {
					count++
					if n.Duration != d2 {
						return false
					}
				}
			}
			return count == 1
		},
		gen.IntRange(0, 127),
		gen.IntRange(0, 63),
		gen.Float64Range(0.25, 16),
		gen.Float64Range(0.25, 16),
	))

	properties.Property("history never exceeds limit", prop.ForAll(
		func(count int) bool {
			s := NewStore()
			for i := 0; i < count; i++ {
				switch i % 3 {
				case 0:
					s.AddNote(i%128, i%64, 1)
				case 1:
					s.RemoveNoteAt(i%128, i%64)
				default:
					s.Clear()
				}
				if s.HistoryLen() > HistoryLimit {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
	))

	properties.Property("no two notes share pitch and start", prop.ForAll(
		func(pitches []int) bool {
			s := NewStore()
			for i, p := range pitches {
				s.AddNote(p, i%4, 1)
			}
			seen := make(map[[2]int]bool)
			for _, n := range s.Notes() {
				key := [2]int{n.Pitch, n.Start}
				if seen[key] {
					return false
				}
				seen[key] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(60, 64)),
	))

	properties.TestingRun(t)
}
