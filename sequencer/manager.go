package sequencer

import (
	"fmt"
	"os"
	"sync"

	"melody-sketch/debug"
	"melody-sketch/midifile"
	"melody-sketch/notes"
	"melody-sketch/theory"
)

// auditionLength is how long a drawn note sounds (seconds)
const auditionLength = 0.1

// ToneSetter is implemented by sinks that can change their sound
type ToneSetter interface {
	SetTone(tone string) error
}

// Silencer is implemented by sinks that can cut notes already scheduled
type Silencer interface {
	Silence()
}

// Options configures a Manager
type Options struct {
	Dir          string      // state directory, empty disables persistence
	Clock        DeviceClock // defaults to a new SystemClock
	Sink         NoteSink    // may be nil
	DefaultTempo int         // used when no state is saved
}

// Manager owns the note store, tempo, scheduler and editor selections.
// The TUI and CLI go through it so every edit is persisted.
type Manager struct {
	store *notes.Store
	tempo *Tempo
	sched *Scheduler
	clock DeviceClock
	sink  NoteSink
	dir   string

	mu sync.Mutex
	ui Selections

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager creates a manager, restoring the saved state from opts.Dir
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}

	st := NewState()
	if opts.DefaultTempo > 0 {
		st.Tempo = ClampTempo(opts.DefaultTempo)
	}
	if opts.Dir != "" {
		st = loadOrDefault(opts.Dir, st)
	}

	store := notes.NewStore()
	store.Load(st.Notes)
	tempo := NewTempo(st.Tempo)

	m := &Manager{
		store:      store,
		tempo:      tempo,
		sched:      NewScheduler(store, tempo, opts.Clock),
		clock:      opts.Clock,
		sink:       opts.Sink,
		dir:        opts.Dir,
		ui:         st.UI,
		UpdateChan: make(chan struct{}, 1),
	}
	debug.Log("mgr", "loaded %d notes at %d bpm", store.Len(), tempo.BPM())
	return m
}

// loadOrDefault keeps fallback when nothing has been saved yet
func loadOrDefault(dir string, fallback *State) *State {
	if _, err := os.Stat(StatePath(dir)); err != nil {
		return fallback
	}
	return LoadState(dir)
}

// Store returns the note store
func (m *Manager) Store() *notes.Store {
	return m.store
}

// Tempo returns the shared tempo
func (m *Manager) Tempo() *Tempo {
	return m.tempo
}

// Scheduler returns the playback scheduler
func (m *Manager) Scheduler() *Scheduler {
	return m.sched
}

// SetSink replaces the note sink, also under a running playback.
// Used when the output device comes or goes. Notes the old sink still
// holds are cut.
func (m *Manager) SetSink(sink NoteSink) {
	m.mu.Lock()
	old := m.sink
	m.sink = sink
	tone := m.ui.Tone
	m.mu.Unlock()

	if s, ok := old.(Silencer); ok {
		s.Silence()
	}
	if ts, ok := sink.(ToneSetter); ok && m.sched.Running() {
		if err := ts.SetTone(tone); err != nil {
			debug.Warn("mgr", "set tone %s: %v", tone, err)
		}
	}
	m.sched.SetSink(sink)
}

// Transport

// Play starts playback from the top. No-op while playing.
func (m *Manager) Play() {
	if m.sched.Running() {
		return
	}
	m.mu.Lock()
	sink, tone := m.sink, m.ui.Tone
	m.mu.Unlock()

	if ts, ok := sink.(ToneSetter); ok {
		if err := ts.SetTone(tone); err != nil {
			debug.Warn("mgr", "set tone %s: %v", tone, err)
		}
	}
	m.sched.Start(sink)
	m.notifyUpdate()
}

// Pause stops scheduling and cuts sounding notes
func (m *Manager) Pause() {
	m.sched.Stop()
	m.silence()
	m.notifyUpdate()
}

// Stop pauses and returns the playhead to step 0
func (m *Manager) Stop() {
	m.sched.Stop()
	m.sched.Reset()
	m.silence()
	m.notifyUpdate()
}

// Rewind jumps back to step 0 without changing the run state
func (m *Manager) Rewind() {
	m.sched.Rewind()
	m.notifyUpdate()
}

// TogglePlay switches between Play and Pause
func (m *Manager) TogglePlay() {
	if m.sched.Running() {
		m.Pause()
	} else {
		m.Play()
	}
}

func (m *Manager) silence() {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if s, ok := sink.(Silencer); ok {
		s.Silence()
	}
}

// SetTempo validates and applies bpm
func (m *Manager) SetTempo(bpm int) error {
	if err := m.tempo.Set(bpm); err != nil {
		return err
	}
	m.changed()
	return nil
}

// AdjustTempo nudges the tempo and returns the new value
func (m *Manager) AdjustTempo(delta int) int {
	bpm := m.tempo.Adjust(delta)
	m.changed()
	return bpm
}

// GetState returns the current sequencer state
func (m *Manager) GetState() (step int, playing bool, tempo int) {
	return m.sched.CurrentStep(), m.sched.Running(), m.tempo.BPM()
}

// Editing

// ApplyTool runs the selected tool on a grid cell and reports whether the
// store changed.
func (m *Manager) ApplyTool(pitch, step int) (bool, error) {
	if m.Selections().Tool == ToolErase {
		return m.Erase(pitch, step), nil
	}
	return m.Draw(pitch, step)
}

// Draw adds a note with the selected duration if the cell is empty, and
// auditions it.
func (m *Manager) Draw(pitch, step int) (bool, error) {
	if _, ok := m.store.NoteAt(pitch, step); ok {
		return false, nil
	}
	if err := m.store.AddNote(pitch, step, m.Selections().NoteDuration()); err != nil {
		return false, err
	}
	m.Audition(pitch)
	m.changed()
	return true, nil
}

// Erase removes the note at a cell
func (m *Manager) Erase(pitch, step int) bool {
	if _, ok := m.store.NoteAt(pitch, step); !ok {
		return false
	}
	m.store.RemoveNoteAt(pitch, step)
	m.changed()
	return true
}

// Audition plays pitch briefly, right now
func (m *Manager) Audition(pitch int) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink == nil {
		return
	}
	sink.ScheduleNote(theory.Frequency(pitch), m.clock.Now(), auditionLength)
}

// Undo reverts the last edit
func (m *Manager) Undo() bool {
	if !m.store.Undo() {
		return false
	}
	m.changed()
	return true
}

// Clear removes every note. It can be undone.
func (m *Manager) Clear() {
	m.store.Clear()
	if m.dir != "" {
		if err := ClearState(m.dir); err != nil {
			debug.Warn("prefs", "clear state: %v", err)
		}
	}
	m.changed()
}

// Selections returns a copy of the editor selections
func (m *Manager) Selections() Selections {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ui
}

// UpdateSelections applies f to the selections, repairs invalid values and
// persists the result.
func (m *Manager) UpdateSelections(f func(*Selections)) Selections {
	m.mu.Lock()
	f(&m.ui)
	m.ui.normalize()
	ui := m.ui
	m.mu.Unlock()

	m.changed()
	return ui
}

// CycleRoot, CycleScale, CycleTone and CycleBars step through their options

func (m *Manager) CycleRoot() Selections {
	return m.UpdateSelections(func(s *Selections) { s.Root = next(theory.NoteNames, s.Root) })
}

func (m *Manager) CycleScale() Selections {
	return m.UpdateSelections(func(s *Selections) { s.Scale = next(theory.ScaleOrder, s.Scale) })
}

func (m *Manager) CycleTone(tones []string) Selections {
	ui := m.UpdateSelections(func(s *Selections) { s.Tone = next(tones, s.Tone) })
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if ts, ok := sink.(ToneSetter); ok && m.sched.Running() {
		if err := ts.SetTone(ui.Tone); err != nil {
			debug.Warn("mgr", "set tone %s: %v", ui.Tone, err)
		}
	}
	return ui
}

func (m *Manager) CycleBars() Selections {
	return m.UpdateSelections(func(s *Selections) { s.Bars = s.Bars%MaxBars + 1 })
}

// Files

// Export writes the melody as a MIDI file at the current tempo
func (m *Manager) Export(path string) error {
	if err := midifile.WriteFile(path, m.store.Notes(), m.tempo.BPM()); err != nil {
		return err
	}
	debug.Log("mgr", "exported %d notes to %s", m.store.Len(), path)
	return nil
}

// Import replaces the melody with the contents of a MIDI file. Notes
// outside the grid are dropped. Returns the number of notes kept.
func (m *Manager) Import(path string) (int, error) {
	mel, err := midifile.ReadFile(path)
	if err != nil {
		return 0, err
	}

	kept := mel.Notes[:0:0]
	for _, n := range mel.Notes {
		if n.Start < NumSteps {
			kept = append(kept, n)
		}
	}
	m.store.Load(kept)
	if mel.BPM > 0 {
		if err := m.tempo.Set(mel.BPM); err != nil {
			debug.Warn("mgr", "import tempo: %v", err)
		}
	}
	m.changed()
	return m.store.Len(), nil
}

// SaveSketch stores a named snapshot of the current melody
func (m *Manager) SaveSketch(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("save sketch: no state directory")
	}
	return SaveSketch(m.dir, name, m.snapshot())
}

// LoadSketch replaces the melody, tempo and selections with a saved sketch
func (m *Manager) LoadSketch(name string) error {
	if m.dir == "" {
		return fmt.Errorf("load sketch: no state directory")
	}
	st, err := LoadSketch(m.dir, name)
	if err != nil {
		return err
	}
	m.store.Load(st.Notes)
	if err := m.tempo.Set(st.Tempo); err != nil {
		debug.Warn("mgr", "sketch tempo: %v", err)
	}
	m.mu.Lock()
	m.ui = st.UI
	m.mu.Unlock()
	m.changed()
	return nil
}

// Save persists the current state
func (m *Manager) Save() error {
	if m.dir == "" {
		return nil
	}
	return SaveState(m.dir, m.snapshot())
}

// Close stops playback and saves
func (m *Manager) Close() error {
	m.Pause()
	return m.Save()
}

func (m *Manager) snapshot() *State {
	st := &State{
		Notes: m.store.Notes(),
		Tempo: m.tempo.BPM(),
		UI:    m.Selections(),
	}
	if st.Notes == nil {
		st.Notes = []notes.Note{}
	}
	return st
}

// changed autosaves and notifies the TUI
func (m *Manager) changed() {
	if err := m.Save(); err != nil {
		debug.Warn("prefs", "save state: %v", err)
	}
	m.notifyUpdate()
}

// notifyUpdate notifies TUI
func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
