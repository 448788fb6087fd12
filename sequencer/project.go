package sequencer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"melody-sketch/debug"
)

const (
	// StateKey is the top-level key the state is stored under
	StateKey = "melodySketchState"

	// StateFile is the autosave file inside the config dir
	StateFile = "state.json"

	sketchTimeFormat = "2006-01-02_15-04-05"
)

var ErrNoSketches = errors.New("no saved sketches")

type stateFile struct {
	State *State `json:"melodySketchState"`
}

// StatePath returns the autosave path inside dir
func StatePath(dir string) string {
	return filepath.Join(dir, StateFile)
}

// LoadState reads the autosave in dir. It never fails: a missing or
// corrupt file yields defaults, and corruption is logged.
func LoadState(dir string) *State {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Warn("prefs", "read state: %v", err)
		}
		return NewState()
	}

	st, err := decodeState(data)
	if err != nil {
		debug.Warn("prefs", "ignoring saved state: %v", err)
		return NewState()
	}
	return st
}

// SaveState writes st as the autosave in dir
func SaveState(dir string, st *State) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stateFile{State: st}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(StatePath(dir), data)
}

// ClearState removes the autosave in dir. A missing file is not an error.
func ClearState(dir string) error {
	err := os.Remove(StatePath(dir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func decodeState(data []byte) (*State, error) {
	f := stateFile{State: NewState()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.State == nil {
		return nil, fmt.Errorf("missing %q", StateKey)
	}
	f.State.normalize()
	return f.State, nil
}

// writeFileAtomic replaces path via a temp file so a crash never leaves it half written
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SketchInfo represents a saved sketch file (for listing)
type SketchInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// SketchesDir returns the snapshot directory inside dir
func SketchesDir(dir string) string {
	return filepath.Join(dir, "sketches")
}

// SaveSketch writes a timestamped copy of st, optionally named, and
// returns its filename.
func SaveSketch(dir, name string, st *State) (string, error) {
	sdir := SketchesDir(dir)
	if err := os.MkdirAll(sdir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(stateFile{State: st}, "", "  ")
	if err != nil {
		return "", err
	}

	filename := time.Now().Format(sketchTimeFormat)
	if safe := sanitizeFilename(name); safe != "" {
		filename += "_" + safe
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(sdir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// ListSketches returns saved sketches, newest first
func ListSketches(dir string) ([]SketchInfo, error) {
	entries, err := os.ReadDir(SketchesDir(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return []SketchInfo{}, nil
		}
		return nil, err
	}

	var sketches []SketchInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < len(sketchTimeFormat) {
			continue
		}
		ts, err := time.Parse(sketchTimeFormat, baseName[:len(sketchTimeFormat)])
		if err != nil {
			continue
		}

		sketchName := ""
		if rest := baseName[len(sketchTimeFormat):]; len(rest) > 1 && rest[0] == '_' {
			sketchName = rest[1:]
		}

		sketches = append(sketches, SketchInfo{
			Filename:  name,
			Name:      sketchName,
			Timestamp: ts,
		})
	}

	sort.SliceStable(sketches, func(i, j int) bool {
		return sketches[i].Timestamp.After(sketches[j].Timestamp)
	})
	return sketches, nil
}

// LoadSketch reads a saved sketch. An empty filename loads the newest,
// and a bare name matches the newest sketch saved under that name.
func LoadSketch(dir, filename string) (*State, error) {
	if filename == "" || !strings.HasSuffix(filename, ".json") {
		sketches, err := ListSketches(dir)
		if err != nil {
			return nil, err
		}
		found := ""
		for _, s := range sketches {
			if filename == "" || s.Name == sanitizeFilename(filename) {
				found = s.Filename
				break
			}
		}
		if found == "" {
			if filename == "" {
				return nil, ErrNoSketches
			}
			return nil, fmt.Errorf("%w named %q", ErrNoSketches, filename)
		}
		filename = found
	}

	data, err := os.ReadFile(filepath.Join(SketchesDir(dir), filepath.Base(filename)))
	if err != nil {
		return nil, err
	}
	st, err := decodeState(data)
	if err != nil {
		return nil, fmt.Errorf("sketch %s: %w", filename, err)
	}
	return st, nil
}

// DeleteSketch deletes a saved sketch file
func DeleteSketch(dir, filename string) error {
	return os.Remove(filepath.Join(SketchesDir(dir), filepath.Base(filename)))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, ":", "-")
	for _, c := range []string{"*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "")
	}
	return name
}
