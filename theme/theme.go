package theme

import (
	"github.com/charmbracelet/lipgloss"

	"melody-sketch/debug"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Grid states (no cursor)
	StepEmpty    rune // · empty cell
	StepOffScale rune // blank, empty cell outside the scale
	NoteStart    rune // ● note begins here
	NoteHold     rune // ─ note still sounding
	StepPlayhead rune // ▶ current playing

	// Grid states (with cursor)
	CursorEmpty  rune // ○ cursor on empty
	CursorActive rune // ◉ cursor on a note

	BarLine rune // │ every 16 steps
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepOffScale: ' ',
			NoteStart:    '●',
			NoteHold:     '─',
			StepPlayhead: '▶',

			CursorEmpty:  '○',
			CursorActive: '◉',

			BarLine: '│',
		},
	}
}

// Load builds a theme from a GIMP palette file, falling back to the
// built-in palette when path is empty or unreadable.
func Load(path string) *Theme {
	p, err := LoadPalette(path)
	if err != nil {
		debug.Warn("theme", "palette: %v", err)
	}
	return New(p)
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return t.role(RoleBG)
}

func (t *Theme) Surface() lipgloss.Color {
	return t.role(RoleSurface)
}

func (t *Theme) FG() lipgloss.Color {
	return t.role(RoleFG)
}

func (t *Theme) Accent() lipgloss.Color {
	return t.role(RoleAccent)
}

func (t *Theme) Muted() lipgloss.Color {
	return t.role(RoleMuted)
}

func (t *Theme) Active() lipgloss.Color {
	return t.role(RoleActive)
}

func (t *Theme) Cursor() lipgloss.Color {
	return t.role(RoleCursor)
}

func (t *Theme) Warning() lipgloss.Color {
	return t.role(RoleWarning)
}

func (t *Theme) Success() lipgloss.Color {
	return t.role(RoleSuccess)
}

func (t *Theme) role(pos float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.At(pos).Hex())
}
