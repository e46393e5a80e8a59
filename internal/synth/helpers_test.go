package synth

import (
	"testing"

	"github.com/cbegin/mt32emu-go/internal/reverb"
)

// Test timbres in group A.
const (
	testSquare = iota
	testRing
	testPCM
	testNoSustain
)

func testPartial() PartialParam {
	var p PartialParam
	p.WG = WGParam{PitchCoarse: 36, PitchFine: 50, PitchKeyfollow: 11, PitchBenderEnabled: 1, PulseWidthVeloSensitivity: 7}
	p.PitchEnv = PitchEnvParam{Time: [4]uint8{1, 1, 1, 1}, Level: [5]uint8{50, 50, 50, 50, 50}}
	p.TVF = TVFParam{Cutoff: 100, Keyfollow: 11, BiasPoint: 64, BiasLevel: 7, EnvTime: [5]uint8{1, 1, 1, 1, 1}}
	p.TVA = TVAParam{
		Level:           100,
		VeloSensitivity: 50,
		BiasPoint1:      64,
		BiasLevel1:      12,
		BiasPoint2:      64,
		BiasLevel2:      12,
		EnvTime:         [5]uint8{1, 20, 20, 20, 20},
		EnvLevel:        [4]uint8{100, 90, 80, 70},
	}
	return p
}

func testTimbre(name string, structure, mute uint8) TimbreParam {
	t := TimbreParam{PartialStructure12: structure, PartialMute: mute}
	copy(t.Name[:], name)
	for i := range t.Partial {
		t.Partial[i] = testPartial()
	}
	return t
}

// testROM is a tiny ROM set: a square, a ring modulated pair, a looped PCM
// wave and a square that ignores note off.
func testROM() ROMSet {
	pcm := make([]int16, 64)
	for i := range pcm {
		pcm[i] = 30000
		if i >= 32 {
			pcm[i] |= -0x8000
		}
	}
	timbres := make([]TimbreParam, 4)
	timbres[testSquare] = testTimbre("Square", 0, 0b0001)
	timbres[testRing] = testTimbre("Ring", 1, 0b0011)
	timbres[testPCM] = testTimbre("PCM", 2, 0b0001)
	timbres[testNoSustain] = testTimbre("Blip", 0, 0b0001)
	timbres[testNoSustain].NoSustain = 1
	return ROMSet{
		Name:     "test",
		PCM:      pcm,
		PCMWaves: []PCMWave{{Addr: 0, Len: 64, Loop: true, Pitch: 20480}},
		Timbres:  timbres,
		Reverb:   reverb.CompatMT32,
		Programs: []uint8{testSquare, testRing, testPCM, testNoSustain},
	}
}

func openTestSynth(t *testing.T, partials int) *Synth {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PartialCount = partials
	s := New()
	if err := s.Open(testROM(), cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// noteOn builds a note on for part (0-7) with the default channel layout.
func noteOn(part, key, velocity int) uint32 {
	return uint32(0x90|(part+1)) | uint32(key)<<8 | uint32(velocity)<<16
}

func noteOff(part, key int) uint32 {
	return uint32(0x80|(part+1)) | uint32(key)<<8
}

func controller(part, cc, value int) uint32 {
	return uint32(0xB0|(part+1)) | uint32(cc)<<8 | uint32(value)<<16
}

func render(s *Synth, frames int) []int16 {
	buf := make([]int16, 2*frames)
	s.Render(buf)
	return buf
}
