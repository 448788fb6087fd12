package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnableWritesCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	if err := Enable(path, "debug"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer Disable()

	Log("sched", "pass emitted %d steps", 3)
	Warn("prefs", "corrupt state")
	for i := 0; i < 4; i++ {
		LogEvery(2, "sink", "dropped note")
	}
	Disable()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	for _, want := range []string{"pass emitted 3 steps", "cat=sched", "corrupt state", "cat=sink"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "dropped note"); got != 2 {
		t.Errorf("LogEvery wrote %d lines, want 2", got)
	}
}

func TestEnableRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	if err := Enable(path, "loud"); err == nil {
		Disable()
		t.Fatal("Enable accepted invalid level")
	}
	if Enabled() {
		t.Error("Enabled() = true after failed Enable")
	}
}

func TestLogWhenDisabledIsNoop(t *testing.T) {
	Disable()
	Log("x", "nothing %d", 1)
	Warn("x", "nothing")
}
