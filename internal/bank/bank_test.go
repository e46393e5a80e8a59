package bank

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/cbegin/mt32emu-go/internal/reverb"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

// decodePCMSample mirrors how the LA32 reads the PCM ROM.
func decodePCMSample(v int16) float64 {
	logValue := (32787 - int(uint16(v)&0x7FFF)) << 1
	a := math.Exp2(-float64(logValue) / 4096)
	if v < 0 {
		return -a
	}
	return a
}

func TestEncodePCMSample(t *testing.T) {
	for _, v := range []float64{1, 0.5, -0.5, 0.01, -0.9} {
		got := decodePCMSample(EncodePCMSample(v))
		if !scalar.EqualWithinRel(got, v, 1e-2) {
			t.Errorf("EncodePCMSample(%v) decodes to %v", v, got)
		}
	}
	if got := EncodePCMSample(0); got != 0 {
		t.Errorf("EncodePCMSample(0) = %d, want 0", got)
	}
}

func TestParseWave(t *testing.T) {
	w := parseWave(organWave)
	if len(w) != 64 {
		t.Fatalf("organ wave has %d samples, want 64", len(w))
	}
	if floats.Max(w) > 1 || floats.Min(w) < -1.01 {
		t.Fatalf("organ wave out of range: %v..%v", floats.Min(w), floats.Max(w))
	}
	if parseWave("zz") != nil {
		t.Fatalf("invalid hex parsed")
	}
}

func TestPitchFor(t *testing.T) {
	// a 64 sample cycle at 32kHz is 500Hz, one octave up is 1000Hz
	if got := pitchFor(64, 1000); got != nativePitch+4096 {
		t.Fatalf("pitchFor(64, 1000) = %d, want %d", got, nativePitch+4096)
	}
}

func TestNewOpensSynth(t *testing.T) {
	for _, compat := range []reverb.Compatibility{reverb.CompatMT32, reverb.CompatCM32L} {
		rom := New(compat)
		if rom.Reverb != compat {
			t.Fatalf("ROM set reverb = %v, want %v", rom.Reverb, compat)
		}
		s := synth.New()
		if err := s.Open(rom, synth.DefaultConfig()); err != nil {
			t.Fatalf("%v: Open: %v", compat, err)
		}
		names := []string{"Square", "Sawtooth", "Ring Bell", "Reso Saw", "PCM Organ", "Stereo Pad", "Pulse", "Square"}
		for part, want := range names {
			if got := s.PartTimbreName(part); got != want {
				t.Errorf("%v: part %d plays %q, want %q", compat, part+1, got, want)
			}
		}
		s.Close()
	}
}

func TestEveryTimbreSounds(t *testing.T) {
	s := synth.New()
	if err := s.Open(New(reverb.CompatMT32), synth.DefaultConfig()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	buf := make([]int16, 2*3000)
	for part := 0; part < melodicTimbres; part++ {
		status := uint32(0x91 + part)
		s.PlayMsg(status | 60<<8 | 100<<16)
		s.Render(buf[:512])
		if got := s.PolyCount(part); got != 1 {
			t.Errorf("%s: %d polys, want 1", s.PartTimbreName(part), got)
		}
		s.PlayMsg(status&0xEF | 60<<8)
	}
	for _, key := range []uint32{KeyKick, KeySnare, KeyHat} {
		s.PlayMsg(0x99 | key<<8 | 127<<16)
		s.Render(buf[:64])
		if got := s.PolyCount(synth.RhythmPartNum); got == 0 {
			t.Errorf("rhythm key %d did not play", key)
		}
	}
}
