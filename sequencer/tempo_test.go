package sequencer

import (
	"errors"
	"testing"
)

func TestTempoSet(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{120, 120, false},
		{20, 20, false},
		{300, 300, false},
		{5, MinTempo, false},
		{999, MaxTempo, false},
		{0, 120, true},
		{-40, 120, true},
	}
	for _, tt := range tests {
		tempo := NewTempo(DefaultTempo)
		err := tempo.Set(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%d) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTempo) {
			t.Errorf("Set(%d) err = %v, want ErrInvalidTempo", tt.in, err)
		}
		if got := tempo.BPM(); got != tt.want {
			t.Errorf("Set(%d) BPM = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewTempoFallsBack(t *testing.T) {
	if got := NewTempo(0).BPM(); got != DefaultTempo {
		t.Errorf("NewTempo(0).BPM() = %d, want %d", got, DefaultTempo)
	}
}

func TestTempoAdjust(t *testing.T) {
	tempo := NewTempo(295)
	if got := tempo.Adjust(10); got != MaxTempo {
		t.Errorf("Adjust(+10) = %d, want %d", got, MaxTempo)
	}
	tempo = NewTempo(22)
	if got := tempo.Adjust(-5); got != MinTempo {
		t.Errorf("Adjust(-5) = %d, want %d", got, MinTempo)
	}
}

func TestParseTempo(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"120", 120, false},
		{" 90 ", 90, false},
		{"97.6", 98, false},
		{"1000", MaxTempo, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"fast", 0, true},
		{"", 0, true},
		{"0.2", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTempo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTempo(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTempo(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
