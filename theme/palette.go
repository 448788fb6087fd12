package theme

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RGB is one palette entry
type RGB [3]uint8

// Hex formats c the way lipgloss expects it
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Palette is an ordered color ramp, as kept in a GIMP .gpl file
type Palette struct {
	Name   string
	Colors []RGB
}

var errNotGPL = errors.New("missing GIMP Palette header")

// plasma is the built-in ramp, deep purple to yellow
const plasma = `GIMP Palette
Name: plasma
 13   8 135
 75   3 161
125   3 168
168  34 150
203  70 121
229 107  93
248 148  65
253 195  40
240 249  33
`

// LoadPalette reads the .gpl file at path. An empty path selects the
// built-in palette, which is also returned alongside any error.
func LoadPalette(path string) (*Palette, error) {
	if path == "" {
		return builtin(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return builtin(), err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return builtin(), fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func builtin() *Palette {
	p, err := ParseGPL(strings.NewReader(plasma))
	if err != nil {
		panic(err)
	}
	return p
}

// ParseGPL reads a GIMP palette. Only the first three fields of a color
// line are used; anything after them is the color's label.
func ParseGPL(r io.Reader) (*Palette, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "GIMP Palette" {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errNotGPL
	}

	p := &Palette{}
	for line := 2; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "", text[0] == '#', strings.HasPrefix(text, "Columns:"):
		case strings.HasPrefix(text, "Name:"):
			p.Name = strings.TrimSpace(text[len("Name:"):])
		default:
			c, err := parseColor(strings.Fields(text))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("palette has no colors")
	}
	return p, nil
}

func parseColor(fields []string) (RGB, error) {
	var c RGB
	if len(fields) < 3 {
		return c, fmt.Errorf("want R G B, got %q", strings.Join(fields, " "))
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, fmt.Errorf("channel %q: %w", fields[i], err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// At samples the ramp at pos in [0,1], blending the two nearest entries
func (p *Palette) At(pos float64) RGB {
	last := len(p.Colors) - 1
	x := min(max(pos, 0), 1) * float64(last)
	i := int(x)
	if i >= last {
		return p.Colors[last]
	}

	f := x - float64(i)
	var out RGB
	for ch := range out {
		a, b := float64(p.Colors[i][ch]), float64(p.Colors[i+1][ch])
		out[ch] = uint8(a + (b-a)*f)
	}
	return out
}
