package widgets

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"melody-sketch/theme"
)

// Cell is what a piano-roll cell shows
type Cell int

const (
	CellEmpty Cell = iota
	CellNoteStart
	CellNoteHold
)

// GridRow is one pitch of the piano roll, top to bottom
type GridRow struct {
	Label   string // e.g. "C4"
	InScale bool
	Cells   []Cell
}

// Grid is everything needed to draw the piano roll
type Grid struct {
	Rows      []GridRow
	Playhead  int // column, -1 when stopped
	CursorRow int
	CursorCol int
	BarEvery  int // columns per bar, 0 for no bar lines
}

// RenderGrid draws a ruler line followed by one line per row
func RenderGrid(g Grid, th *theme.Theme) string {
	sym := th.Symbols
	labelStyle := lipgloss.NewStyle().Foreground(th.FG())
	offLabelStyle := lipgloss.NewStyle().Foreground(th.Muted())
	emptyStyle := lipgloss.NewStyle().Foreground(th.Muted())
	noteStyle := lipgloss.NewStyle().Foreground(th.Accent())
	holdStyle := lipgloss.NewStyle().Foreground(th.Active())
	playStyle := lipgloss.NewStyle().Foreground(th.Success())
	cursorStyle := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	barStyle := lipgloss.NewStyle().Foreground(th.Surface())

	width := 0
	labelWidth := 0
	for _, r := range g.Rows {
		width = max(width, len(r.Cells))
		labelWidth = max(labelWidth, len(r.Label))
	}

	var out strings.Builder
	out.WriteString(strings.Repeat(" ", labelWidth+1))
	out.WriteString(ruler(width, g.Playhead, g.BarEvery, sym.StepPlayhead, playStyle, emptyStyle))

	for ri, r := range g.Rows {
		out.WriteString("\n")
		ls := labelStyle
		if !r.InScale {
			ls = offLabelStyle
		}
		out.WriteString(ls.Render(padLeft(r.Label, labelWidth)))
		out.WriteString(" ")

		for ci, c := range r.Cells {
			if g.BarEvery > 0 && ci > 0 && ci%g.BarEvery == 0 {
				out.WriteString(barStyle.Render(string(sym.BarLine)))
			}

			cursor := ri == g.CursorRow && ci == g.CursorCol
			switch {
			case cursor && c == CellEmpty:
				out.WriteString(cursorStyle.Render(string(sym.CursorEmpty)))
			case cursor:
				out.WriteString(cursorStyle.Render(string(sym.CursorActive)))
			case c == CellNoteStart && ci == g.Playhead:
				out.WriteString(playStyle.Render(string(sym.NoteStart)))
			case c == CellNoteStart:
				out.WriteString(noteStyle.Render(string(sym.NoteStart)))
			case c == CellNoteHold:
				out.WriteString(holdStyle.Render(string(sym.NoteHold)))
			case ci == g.Playhead:
				out.WriteString(playStyle.Render(string(sym.StepEmpty)))
			case !r.InScale:
				out.WriteString(emptyStyle.Render(string(sym.StepOffScale)))
			default:
				out.WriteString(emptyStyle.Render(string(sym.StepEmpty)))
			}
		}
	}
	return out.String()
}

// ruler numbers each bar and marks the playhead
func ruler(width, playhead, barEvery int, mark rune, playStyle, dim lipgloss.Style) string {
	var out strings.Builder
	for i := 0; i < width; i++ {
		if barEvery > 0 && i > 0 && i%barEvery == 0 {
			out.WriteString(" ")
		}
		switch {
		case i == playhead:
			out.WriteString(playStyle.Render(string(mark)))
		case barEvery > 0 && i%barEvery == 0:
			out.WriteString(dim.Render(strconv.Itoa((i/barEvery + 1) % 10)))
		default:
			out.WriteString(" ")
		}
	}
	return out.String()
}

func padLeft(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat(" ", n-len(s)) + s
}
