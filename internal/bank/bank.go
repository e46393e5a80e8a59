// Package bank builds a small ROM set from scratch so the synth can be
// played and tested without dumps of the real control and PCM ROMs.
package bank

import (
	"encoding/hex"
	"math"
	"math/rand"

	"github.com/cbegin/mt32emu-go/internal/reverb"
	"github.com/cbegin/mt32emu-go/internal/synth"
)

// Melodic timbres in group A.
const (
	TimbreSquare = iota
	TimbreSawtooth
	TimbreRingBell
	TimbreResoSaw
	TimbrePCMOrgan
	TimbreStereoPad
	TimbrePulse
	melodicTimbres
)

// Rhythm keys wired to the rhythm bank.
const (
	KeyKick  = 36
	KeySnare = 38
	KeyHat   = 42
)

// organWave is one cycle of a drawbar organ in signed 8-bit hex, 64 samples.
const organWave = "00263f4a4b4641403f3c36302b2a2c2f2f2a1f12" +
	"08fffaf8f9fbfbf7f0e8e2dfe0e2e4e3dfd8d1cc" +
	"c9c8c9cacac7c2bdb9b7b7b9bbbcbbb9b6b4b3b5" +
	"b8bdc5d0"

// parseWave converts pairs of hex digits (signed 8-bit samples) into
// samples in [-1, 1].
func parseWave(h string) []float64 {
	data, err := hex.DecodeString(h)
	if err != nil {
		return nil
	}
	out := make([]float64, len(data))
	for i, b := range data {
		out[i] = float64(int8(b)) / 127.0
	}
	return out
}

// EncodePCMSample converts a linear sample in [-1, 1] to the logarithmic
// PCM ROM format: the low 15 bits hold 32787 minus half the attenuation in
// 1/4096 octave steps, the sign bit the polarity.
func EncodePCMSample(v float64) int16 {
	a := math.Abs(v)
	var mag int
	if a > 0 {
		att := -math.Log2(math.Min(a, 1)) * 2048
		mag = 32787 - int(math.Round(att))
	}
	mag = max(0, min(mag, 32767))
	if v < 0 {
		return int16(uint16(mag) | 0x8000)
	}
	return int16(mag)
}

type pcmBuilder struct {
	data  []int16
	waves []synth.PCMWave
}

// add appends samples as a new wave. pitch is the base pitch that plays the
// samples back at 32kHz for key 60.
func (b *pcmBuilder) add(samples []float64, loop bool, pitch uint16) int {
	addr := len(b.data)
	for _, v := range samples {
		b.data = append(b.data, EncodePCMSample(v))
	}
	b.waves = append(b.waves, synth.PCMWave{
		Addr:  uint32(addr),
		Len:   uint32(len(samples)),
		Loop:  loop,
		Pitch: pitch,
	})
	return len(b.waves) - 1
}

// Native playback at 32kHz for key 60.
const nativePitch = 20480

func pitchFor(cycleLen int, freq float64) uint16 {
	native := float64(synth.SampleRate) / float64(cycleLen)
	return uint16(nativePitch + int(math.Round(math.Log2(freq/native)*4096)))
}

func noiseBurst(rng *rand.Rand, n int, decay float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * math.Exp(-float64(i)/decay)
	}
	return out
}

func kickWave(n int) []float64 {
	out := make([]float64, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / synth.SampleRate
		freq := 50 + 120*math.Exp(-t*30)
		phase += 2 * math.Pi * freq / synth.SampleRate
		out[i] = math.Sin(phase) * math.Exp(-t*8)
	}
	return out
}

func basePartial() synth.PartialParam {
	var p synth.PartialParam
	p.WG = synth.WGParam{
		PitchCoarse:               36,
		PitchFine:                 50,
		PitchKeyfollow:            11,
		PitchBenderEnabled:        1,
		PulseWidthVeloSensitivity: 7,
	}
	p.PitchEnv = synth.PitchEnvParam{
		Time:  [4]uint8{1, 1, 1, 1},
		Level: [5]uint8{50, 50, 50, 50, 50},
	}
	p.PitchLFO = synth.PitchLFOParam{Rate: 60}
	p.TVF = synth.TVFParam{
		Cutoff:    100,
		Keyfollow: 11,
		BiasPoint: 64,
		BiasLevel: 7,
		EnvTime:   [5]uint8{1, 1, 1, 1, 1},
	}
	p.TVA = synth.TVAParam{
		Level:           100,
		VeloSensitivity: 50,
		BiasPoint1:      64,
		BiasLevel1:      12,
		BiasPoint2:      64,
		BiasLevel2:      12,
		EnvTime:         [5]uint8{10, 40, 50, 60, 40},
		EnvLevel:        [4]uint8{100, 90, 80, 70},
	}
	return p
}

func timbre(name string, structure12, structure34, mute uint8, partials ...synth.PartialParam) synth.TimbreParam {
	t := synth.TimbreParam{
		PartialStructure12: structure12,
		PartialStructure34: structure34,
		PartialMute:        mute,
	}
	for i := range t.Name {
		t.Name[i] = ' '
	}
	copy(t.Name[:], name)
	for i := range t.Partial {
		t.Partial[i] = basePartial()
	}
	copy(t.Partial[:], partials)
	return t
}

func percussive(p synth.PartialParam, release uint8) synth.PartialParam {
	p.TVA.EnvTime = [5]uint8{1, 30, 40, 50, release}
	p.TVA.EnvLevel = [4]uint8{100, 60, 20, 0}
	return p
}

// New returns the built-in ROM set. compat selects which reverb generation
// the set claims to come from.
func New(compat reverb.Compatibility) synth.ROMSet {
	var pcm pcmBuilder
	rng := rand.New(rand.NewSource(0x3216))
	organ := pcm.add(parseWave(organWave), true, pitchFor(64, 261.63))
	snare := pcm.add(noiseBurst(rng, 6000, 1500), false, nativePitch)
	hat := pcm.add(noiseBurst(rng, 1200, 250), false, nativePitch)
	kick := pcm.add(kickWave(8000), false, nativePitch)

	timbres := make([]synth.TimbreParam, 256)

	square := basePartial()
	saw := basePartial()
	saw.WG.Waveform = 1

	bellMaster := basePartial()
	bellSlave := basePartial()
	bellSlave.WG.PitchCoarse = 55
	bellSlave.WG.PitchFine = 57
	bellMaster = percussive(bellMaster, 60)
	bellSlave = percussive(bellSlave, 60)

	reso := saw
	reso.TVF.Cutoff = 45
	reso.TVF.Resonance = 22
	reso.TVF.EnvDepth = 70
	reso.TVF.EnvTime = [5]uint8{30, 50, 60, 50, 40}
	reso.TVF.EnvLevel = [4]uint8{100, 70, 50, 40}

	organPartial := basePartial()
	organPartial.WG.PCMWave = uint8(organ)

	padLeft := saw
	padLeft.WG.PitchFine = 45
	padLeft.TVA.EnvTime = [5]uint8{60, 50, 50, 50, 60}
	padLeft.PitchLFO = synth.PitchLFOParam{Rate: 70, Depth: 8, ModSensitivity: 50}
	padRight := padLeft
	padRight.WG.PitchFine = 55

	pulse := basePartial()
	pulse.WG.PulseWidth = 70
	pulse.WG.PulseWidthVeloSensitivity = 10

	timbres[TimbreSquare] = timbre("Square", 0, 0, 0b0001, square)
	timbres[TimbreSawtooth] = timbre("Sawtooth", 0, 0, 0b0001, saw)
	timbres[TimbreRingBell] = timbre("Ring Bell", 1, 0, 0b0011, bellMaster, bellSlave)
	timbres[TimbreResoSaw] = timbre("Reso Saw", 0, 0, 0b0001, reso)
	timbres[TimbrePCMOrgan] = timbre("PCM Organ", 2, 0, 0b0001, organPartial)
	timbres[TimbreStereoPad] = timbre("Stereo Pad", 7, 0, 0b0011, padLeft, padRight)
	timbres[TimbrePulse] = timbre("Pulse", 0, 0, 0b0001, pulse)

	drum := func(name string, wave int, release uint8) synth.TimbreParam {
		p := percussive(basePartial(), release)
		p.WG.PCMWave = uint8(wave)
		p.WG.PitchKeyfollow = 3 // fixed pitch
		t := timbre(name, 2, 0, 0b0001, p)
		t.NoSustain = 1
		return t
	}
	timbres[192] = drum("Kick", kick, 30)
	timbres[193] = drum("Snare", snare, 30)
	timbres[194] = drum("Hat", hat, 20)

	rhythm := make([]synth.RhythmTemp, synth.RhythmKeys)
	for i := range rhythm {
		rhythm[i] = synth.RhythmTemp{Timbre: 127, OutputLevel: 100, Panpot: 7, ReverbSwitch: 1}
	}
	rhythm[KeyKick-24] = synth.RhythmTemp{Timbre: 64, OutputLevel: 100, Panpot: 7}
	rhythm[KeySnare-24] = synth.RhythmTemp{Timbre: 65, OutputLevel: 90, Panpot: 6, ReverbSwitch: 1}
	rhythm[KeyHat-24] = synth.RhythmTemp{Timbre: 66, OutputLevel: 80, Panpot: 9, ReverbSwitch: 1}

	programs := make([]uint8, 8)
	for i := range programs {
		programs[i] = uint8(i % melodicTimbres)
	}

	// the old MT-32 control ROMs limit low TVF base cutoffs
	features := synth.ControlROMFeatures{QuirkTVFBaseCutoffLimit: compat == reverb.CompatMT32}

	return synth.ROMSet{
		Name:              "builtin",
		PCM:               pcm.data,
		PCMWaves:          pcm.waves,
		Timbres:           timbres,
		RhythmSetup:       rhythm,
		RhythmTimbreCount: 3,
		Reverb:            compat,
		Programs:          programs,
		Features:          features,
	}
}
