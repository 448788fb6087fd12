package sequencer

import (
	"sync"
	"time"

	"melody-sketch/debug"
	"melody-sketch/notes"
	"melody-sketch/theory"
)

const (
	// NumSteps is the loop length: 4 bars of 16th notes
	NumSteps = 64

	// How often the scheduling pass runs
	lookahead = 25 * time.Millisecond

	// How far past now notes are handed to the sink (seconds)
	scheduleAheadTime = 0.1

	// Head start so the first note is never in the past (seconds)
	startOffset = 0.1
)

// PlaybackClock is the scheduler's logical position
type PlaybackClock struct {
	Current16th  int     // next step to schedule
	NextNoteTime float64 // device time Current16th is due
	CurrentStep  int     // last published step, for display only
}

// Scheduler turns the note store into timestamped sink calls, running a
// short pass every lookahead interval and scheduling everything due within
// scheduleAheadTime. Late timer callbacks catch up step by step.
type Scheduler struct {
	store *notes.Store
	tempo *Tempo
	clock DeviceClock

	mu         sync.Mutex
	pos        PlaybackClock
	sink       NoteSink
	running    bool
	generation uint64
	cancel     func() bool

	afterFunc afterFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler(store *notes.Store, tempo *Tempo, clock DeviceClock) *Scheduler {
	return &Scheduler{
		store:     store,
		tempo:     tempo,
		clock:     clock,
		afterFunc: timeAfterFunc,
	}
}

// Start begins playback from step 0. A nil sink is allowed: the clock runs
// and notes are dropped.
func (s *Scheduler) Start(sink NoteSink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.running = true
	s.sink = sink
	s.pos.Current16th = 0
	s.pos.NextNoteTime = s.clock.Now() + startOffset
	debug.Log("sched", "start at %.3f bpm=%d", s.pos.NextNoteTime, s.tempo.BPM())

	s.passLocked(s.generation)
}

// SetSink swaps the sink used from the next pass on, keeping the position
func (s *Scheduler) SetSink(sink NoteSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Stop halts scheduling. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancelLocked()
	debug.Log("sched", "stop at step %d", s.pos.Current16th)
}

// Reset returns to step 0 without changing the run state
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos.Current16th = 0
	s.pos.CurrentStep = 0
}

// Rewind returns to step 0 and re-anchors the next note just ahead of now,
// without changing the run state.
func (s *Scheduler) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos.Current16th = 0
	s.pos.CurrentStep = 0
	s.pos.NextNoteTime = s.clock.Now() + startOffset
}

// Running reports whether passes are being scheduled
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentStep is the display playhead. It can run up to one lookahead
// window ahead of what is audible.
func (s *Scheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.CurrentStep
}

// Position returns a copy of the playback clock
func (s *Scheduler) Position() PlaybackClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// cancelLocked stops the pending callback and invalidates any that already fired
func (s *Scheduler) cancelLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// tick is the timer callback
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passLocked(gen)
}

// passLocked drains every step due before now+scheduleAheadTime, then re-arms
func (s *Scheduler) passLocked(gen uint64) {
	if !s.running || gen != s.generation {
		return
	}

	horizon := s.clock.Now() + scheduleAheadTime
	for s.pos.NextNoteTime < horizon {
		s.emitLocked(s.pos.Current16th, s.pos.NextNoteTime)
		s.advanceLocked()
	}

	s.cancel = s.afterFunc(lookahead, func() { s.tick(gen) })
	s.pos.CurrentStep = s.pos.Current16th
}

// emitLocked hands every note on step to the sink, stamped at t
func (s *Scheduler) emitLocked(step int, t float64) {
	due := s.store.NotesAtStep(step)
	if len(due) == 0 {
		return
	}
	if s.sink == nil {
		debug.LogEvery(16, "sched", "no sink, dropped %d notes at step %d", len(due), step)
		return
	}

	secondsPerBeat := 60.0 / float64(s.tempo.BPM())
	for _, n := range due {
		s.sink.ScheduleNote(theory.Frequency(n.Pitch), t, secondsPerBeat*(n.Duration/4))
	}
}

// advanceLocked moves to the next 16th at the tempo in effect right now
func (s *Scheduler) advanceLocked() {
	s.pos.NextNoteTime += StepDuration(s.tempo.BPM())
	s.pos.Current16th = (s.pos.Current16th + 1) % NumSteps
}
