package notes

import (
	"errors"
	"math"
	"sync"
)

// HistoryLimit is the maximum number of undo snapshots kept
const HistoryLimit = 50

// ErrInvalidNote is returned when a note falls outside the editable grid
var ErrInvalidNote = errors.New("invalid note")

// Note is a single grid note. Start and Duration are in 16th-note units.
type Note struct {
	Pitch    int     `json:"pitch"`
	Start    int     `json:"start"`
	Duration float64 `json:"duration"`
}

// Valid reports whether the note can live in a Store
func (n Note) Valid() bool {
	if n.Pitch < 0 || n.Pitch > 127 || n.Start < 0 {
		return false
	}
	return n.Duration > 0 && !math.IsInf(n.Duration, 0) && !math.IsNaN(n.Duration)
}

// Store holds the melody and its undo history.
// At most one note occupies a given (pitch, start) pair.
type Store struct {
	mu      sync.RWMutex
	notes   []Note
	history [][]Note
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// snapshot pushes a copy of the current notes, evicting the oldest entry at the limit.
// Caller holds the write lock.
func (s *Store) snapshot() {
	if len(s.history) >= HistoryLimit {
		n := copy(s.history, s.history[1:])
		s.history[n] = nil
		s.history = s.history[:n]
	}
	s.history = append(s.history, cloneNotes(s.notes))
}

// AddNote places a note, replacing whatever sat at (pitch, start).
// The add and the implicit overwrite are a single undo step.
func (s *Store) AddNote(pitch, start int, duration float64) error {
	n := Note{Pitch: pitch, Start: start, Duration: duration}
	if !n.Valid() {
		return ErrInvalidNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot()
	s.removeNoteAt(pitch, start, false)
	s.notes = append(s.notes, n)
	return nil
}

// RemoveNoteAt deletes any note at (pitch, start)
func (s *Store) RemoveNoteAt(pitch, start int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNoteAt(pitch, start, true)
}

func (s *Store) removeNoteAt(pitch, start int, snapshotFirst bool) {
	if snapshotFirst {
		s.snapshot()
	}
	kept := s.notes[:0:0]
	for _, n := range s.notes {
		if n.Pitch == pitch && n.Start == start {
			continue
		}
		kept = append(kept, n)
	}
	s.notes = kept
}

// Clear removes every note
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot()
	s.notes = nil
}

// Undo restores the state before the last mutation. Returns false if there was nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return false
	}
	last := len(s.history) - 1
	s.notes = s.history[last]
	s.history[last] = nil
	s.history = s.history[:last]
	return true
}

// NotesAtStep returns the notes starting on step
func (s *Store) NotesAtStep(step int) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Note
	for _, n := range s.notes {
		if n.Start == step {
			out = append(out, n)
		}
	}
	return out
}

// NoteAt returns the note occupying (pitch, start), if any
func (s *Store) NoteAt(pitch, start int) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.notes {
		if n.Pitch == pitch && n.Start == start {
			return n, true
		}
	}
	return Note{}, false
}

// Notes returns a copy of all notes in insertion order
func (s *Store) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotes(s.notes)
}

// Len returns the number of notes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// HistoryLen returns the number of undo snapshots
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Load replaces the contents with notes read from storage.
// Invalid entries are dropped, later duplicates win, and history is cleared.
func (s *Store) Load(in []Note) {
	var loaded []Note
	for _, n := range in {
		if !n.Valid() {
			continue
		}
		for i := range loaded {
			if loaded[i].Pitch == n.Pitch && loaded[i].Start == n.Start {
				loaded = append(loaded[:i], loaded[i+1:]...)
				break
			}
		}
		loaded = append(loaded, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = loaded
	s.history = nil
}

func cloneNotes(in []Note) []Note {
	if len(in) == 0 {
		return nil
	}
	out := make([]Note, len(in))
	copy(out, in)
	return out
}
