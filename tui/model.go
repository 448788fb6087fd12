package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"melody-sketch/midi"
	"melody-sketch/notes"
	"melody-sketch/sequencer"
	"melody-sketch/theme"
	"melody-sketch/theory"
	"melody-sketch/widgets"
)

const (
	uiFPS       = 30
	defaultRows = 24
	tempoStep   = 5

	// blank line, header, info, blank line, ruler
	gridTop = 5
)

// durationNames label the selectable base durations
var durationNames = map[int]string{1: "1/16", 2: "1/8", 4: "1/4", 8: "1/2", 16: "1"}

type Model struct {
	Manager    *sequencer.Manager
	Theme      *theme.Theme
	ExportPath string

	// Keys delivers step entry from a MIDI keyboard, may be nil
	Keys <-chan midi.NoteEvent

	cursorPitch int
	cursorStep  int
	topPitch    int
	rows        int

	status       string
	confirmClear bool
	tempoInput   *strings.Builder
	quitting     bool
}

type UpdateMsg struct{}

type TickMsg time.Time

// KeyNoteMsg is a key pressed on the step entry keyboard
type KeyNoteMsg struct {
	Pitch int
}

func NewModel(manager *sequencer.Manager, th *theme.Theme, exportPath string) Model {
	return Model{
		Manager:     manager,
		Theme:       th,
		ExportPath:  exportPath,
		cursorPitch: 60,
		topPitch:    72,
		rows:        defaultRows,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForKeys(keys <-chan midi.NoteEvent) tea.Cmd {
	if keys == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-keys
		if !ok {
			return nil
		}
		return KeyNoteMsg{Pitch: int(ev.Note)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/uiFPS, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		ListenForKeys(m.Keys),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if pitch, step, ok := m.hitTest(msg.X, msg.Y); ok {
				m.cursorPitch, m.cursorStep = pitch, step
				m.applyTool()
			}
		}

	case tea.WindowSizeMsg:
		// header, ruler, status and help take 12 lines
		m.rows = max(8, min(msg.Height-12, 128))
		m.scrollToCursor()

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case KeyNoteMsg:
		m.stepEntry(msg.Pitch)
		return m, ListenForKeys(m.Keys)

	case TickMsg:
		return m, tick()
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.tempoInput != nil {
		m.handleTempoKey(key)
		return m, nil
	}
	if m.confirmClear {
		m.confirmClear = false
		if key == "y" {
			m.Manager.Clear()
			m.status = "cleared (ctrl+z to undo)"
		} else {
			m.status = ""
		}
		return m, nil
	}

	m.status = ""
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if err := m.Manager.Close(); err != nil {
			m.status = err.Error()
		}
		return m, tea.Quit

	case "left", "h":
		m.cursorStep = max(0, m.cursorStep-1)
	case "right", "l":
		m.cursorStep = min(m.Manager.Selections().VisibleSteps()-1, m.cursorStep+1)
	case "up", "k":
		m.cursorPitch = min(127, m.cursorPitch+1)
	case "down", "j":
		m.cursorPitch = max(0, m.cursorPitch-1)
	case "pgup":
		m.cursorPitch = min(127, m.cursorPitch+12)
	case "pgdown":
		m.cursorPitch = max(0, m.cursorPitch-12)

	case " ", "enter":
		m.applyTool()
	case "d":
		m.Manager.UpdateSelections(func(s *sequencer.Selections) { s.Tool = sequencer.ToolDraw })
	case "e":
		m.Manager.UpdateSelections(func(s *sequencer.Selections) { s.Tool = sequencer.ToolErase })
	case "1", "2", "3", "4", "5":
		d := sequencer.BaseDurations[key[0]-'1']
		m.Manager.UpdateSelections(func(s *sequencer.Selections) { s.BaseDuration = d })
	case ".":
		m.Manager.UpdateSelections(func(s *sequencer.Selections) { s.Dotted = !s.Dotted })

	case "ctrl+z", "u":
		if !m.Manager.Undo() {
			m.status = "nothing to undo"
		}
	case "c":
		m.confirmClear = true
		m.status = "clear all notes? (y/n)"

	case "p":
		m.Manager.TogglePlay()
	case "s":
		m.Manager.Stop()
	case "z":
		m.Manager.Rewind()
	case "+", "=":
		m.Manager.AdjustTempo(tempoStep)
	case "-", "_":
		m.Manager.AdjustTempo(-tempoStep)
	case "t":
		m.tempoInput = &strings.Builder{}
		m.status = "tempo: "

	case "r":
		m.Manager.CycleRoot()
	case "m":
		m.Manager.CycleScale()
	case "o":
		m.Manager.CycleTone(midi.Tones)
	case "b":
		ui := m.Manager.CycleBars()
		m.cursorStep = min(m.cursorStep, ui.VisibleSteps()-1)

	case "x":
		if err := m.Manager.Export(m.ExportPath); err != nil {
			m.status = "export failed: " + err.Error()
		} else {
			m.status = "exported " + m.ExportPath
		}
	case "w":
		if name, err := m.Manager.SaveSketch(""); err != nil {
			m.status = "save failed: " + err.Error()
		} else {
			m.status = "saved sketch " + name
		}
	}

	m.scrollToCursor()
	return m, nil
}

func (m *Model) handleTempoKey(key string) {
	switch key {
	case "esc":
		m.tempoInput = nil
		m.status = ""
	case "enter":
		bpm, err := sequencer.ParseTempo(m.tempoInput.String())
		m.tempoInput = nil
		if err == nil {
			err = m.Manager.SetTempo(bpm)
		}
		if err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("tempo %d", bpm)
		}
	case "backspace":
		s := m.tempoInput.String()
		m.tempoInput.Reset()
		if len(s) > 0 {
			m.tempoInput.WriteString(s[:len(s)-1])
		}
		m.status = "tempo: " + m.tempoInput.String()
	default:
		if len(key) == 1 && (key[0] >= '0' && key[0] <= '9' || key[0] == '.') {
			m.tempoInput.WriteString(key)
			m.status = "tempo: " + m.tempoInput.String()
		}
	}
}

func (m *Model) applyTool() {
	if _, err := m.Manager.ApplyTool(m.cursorPitch, m.cursorStep); err != nil {
		m.status = err.Error()
	}
}

// stepEntry draws pitch at the cursor and moves past the new note
func (m *Model) stepEntry(pitch int) {
	m.cursorPitch = pitch
	ui := m.Manager.Selections()
	if _, err := m.Manager.Draw(pitch, m.cursorStep); err != nil {
		m.status = err.Error()
		return
	}
	m.cursorStep = (m.cursorStep + int(math.Ceil(ui.NoteDuration()))) % ui.VisibleSteps()
	m.scrollToCursor()
}

// scrollToCursor keeps the cursor row on screen
func (m *Model) scrollToCursor() {
	if m.cursorPitch > m.topPitch {
		m.topPitch = m.cursorPitch
	}
	if m.cursorPitch <= m.topPitch-m.rows {
		m.topPitch = m.cursorPitch + m.rows - 1
	}
	m.topPitch = min(127, max(m.topPitch, m.rows-1))
}

// labelWidth is the widest pitch label in the visible window
func (m Model) labelWidth() int {
	w := 0
	for row := 0; row < m.rows && m.topPitch-row >= 0; row++ {
		w = max(w, len(theory.NoteName(m.topPitch-row)))
	}
	return w
}

// hitTest maps a screen position to a grid cell
func (m Model) hitTest(x, y int) (pitch, step int, ok bool) {
	row := y - gridTop
	if row < 0 || row >= m.rows {
		return 0, 0, false
	}
	pitch = m.topPitch - row
	if pitch < 0 {
		return 0, 0, false
	}

	col := x - m.labelWidth() - 1
	if col < 0 {
		return 0, 0, false
	}
	// each bar is 16 cells followed by a bar line
	bar := col / (sequencer.StepsPerBar + 1)
	within := col % (sequencer.StepsPerBar + 1)
	if within == sequencer.StepsPerBar {
		return 0, 0, false
	}
	step = bar*sequencer.StepsPerBar + within
	if step >= m.Manager.Selections().VisibleSteps() {
		return 0, 0, false
	}
	return pitch, step, true
}

// buildGrid turns the store into widget rows for the visible window
func (m Model) buildGrid(ui sequencer.Selections, all []notes.Note, playhead int) widgets.Grid {
	steps := ui.VisibleSteps()
	g := widgets.Grid{
		Playhead:  playhead,
		CursorRow: m.topPitch - m.cursorPitch,
		CursorCol: m.cursorStep,
		BarEvery:  sequencer.StepsPerBar,
	}
	for row := 0; row < m.rows; row++ {
		pitch := m.topPitch - row
		if pitch < 0 {
			break
		}
		r := widgets.GridRow{
			Label:   theory.NoteName(pitch),
			InScale: theory.InScale(pitch, ui.Root, ui.Scale),
			Cells:   make([]widgets.Cell, steps),
		}
		for _, n := range all {
			if n.Pitch != pitch {
				continue
			}
			for s := n.Start; s < steps && float64(s-n.Start) < n.Duration; s++ {
				if s == n.Start {
					r.Cells[s] = widgets.CellNoteStart
				} else if r.Cells[s] == widgets.CellEmpty {
					r.Cells[s] = widgets.CellNoteHold
				}
			}
		}
		g.Rows = append(g.Rows, r)
	}
	return g
}

var keyHelp = []widgets.KeySection{
	{Title: "Edit", Keys: []widgets.KeyBinding{
		{Key: "arrows/hjkl", Desc: "move"},
		{Key: "space/click", Desc: "apply tool"},
		{Key: "d / e", Desc: "draw / erase"},
		{Key: "1-5 / .", Desc: "length / dot"},
		{Key: "ctrl+z", Desc: "undo"},
		{Key: "c", Desc: "clear"},
	}},
	{Title: "Play", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "play/pause"},
		{Key: "s", Desc: "stop"},
		{Key: "z", Desc: "rewind"},
		{Key: "+ / - / t", Desc: "tempo"},
	}},
	{Title: "Sound", Keys: []widgets.KeyBinding{
		{Key: "r / m", Desc: "key / scale"},
		{Key: "o", Desc: "tone"},
		{Key: "b", Desc: "bars"},
		{Key: "x / w", Desc: "export / save"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	step, playing, tempo := m.Manager.GetState()
	ui := m.Manager.Selections()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := "STOP"
	if playing {
		playState = "PLAY"
	}
	dur := durationNames[ui.BaseDuration]
	if ui.Dotted {
		dur += "."
	}
	header := headerStyle.Render(fmt.Sprintf("melody-sketch  %s  %3dbpm  step:%02d", playState, tempo, step))
	info := dimStyle.Render(fmt.Sprintf("%s %s  %s  %s  %s  %d bar(s)  %s",
		ui.Root, ui.Scale, ui.Tone, dur, ui.Tool, ui.Bars, theory.NoteName(m.cursorPitch)))

	playhead := -1
	if playing && step < ui.VisibleSteps() {
		playhead = step
	}
	grid := m.buildGrid(ui, m.Manager.Store().Notes(), playhead)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(info)
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderGrid(grid, m.Theme))
	out.WriteString("\n\n")
	out.WriteString(statusStyle.Render(m.status))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelpColumns(keyHelp, 4)))

	return out.String()
}
