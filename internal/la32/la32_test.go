package la32

import (
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cbegin/mt32emu-go/internal/tables"
)

const sampleRate = 32000

func TestRampReachesTargetAndInterrupts(t *testing.T) {
	var r Ramp
	r.StartRamp(100, 127)
	reachedAt := -1
	for i := 0; i < 1000; i++ {
		v := r.NextValue()
		if reachedAt < 0 && v == 100<<targetShifts {
			reachedAt = i
		}
		if r.CheckInterrupt() {
			if reachedAt < 0 {
				t.Fatalf("interrupt raised before target reached")
			}
			if got := i - reachedAt; got != interruptTime {
				t.Fatalf("interrupt after %d samples, want %d", got, interruptTime)
			}
			return
		}
	}
	t.Fatalf("ramp never interrupted (reached at %d)", reachedAt)
}

func TestRampDescending(t *testing.T) {
	var r Ramp
	r.StartRamp(200, 127)
	for i := 0; i < 1000 && !r.CheckInterrupt(); i++ {
		r.NextValue()
	}
	if !r.IsBelowCurrent(50) {
		t.Fatalf("expected 50 to be below current")
	}
	r.StartRamp(50, 0x80|100)
	for i := 0; i < 100000 && !r.CheckInterrupt(); i++ {
		r.NextValue()
	}
	if got := r.NextValue(); got != 50<<targetShifts {
		t.Fatalf("descending ramp settled at %d, want %d", got, 50<<targetShifts)
	}
}

func TestRampZeroIncrementHolds(t *testing.T) {
	var r Ramp
	r.StartRamp(10, 127)
	for i := 0; i < 50; i++ {
		r.NextValue()
	}
	held := r.NextValue()
	r.StartRamp(200, 0)
	for i := 0; i < 100; i++ {
		if v := r.NextValue(); v != held {
			t.Fatalf("value moved to %d with zero increment", v)
		}
		if r.CheckInterrupt() {
			t.Fatalf("zero increment raised interrupt")
		}
	}
}

func TestLogSampleArithmetic(t *testing.T) {
	if got := Unlog(LogSample{}); got < 8180 {
		t.Errorf("Unlog(0) = %d, want full scale", got)
	}
	if got := Unlog(LogSample{LogValue: 4096, Negative: true}); got > -4000 || got < -4200 {
		t.Errorf("Unlog(-4096) = %d, want about -4096", got)
	}
	if got := Unlog(silence); got != 0 {
		t.Errorf("Unlog(silence) = %d, want 0", got)
	}
	a := LogSample{LogValue: 40000, Negative: true}
	AddLogSamples(&a, LogSample{LogValue: 40000, Negative: true})
	if a.LogValue != 65535 || a.Negative {
		t.Errorf("AddLogSamples = %+v, want saturated positive", a)
	}
}

func dominantFrequency(t *testing.T, samples []float64) float64 {
	t.Helper()
	fft := fourier.NewFFT(len(samples))
	coeffs := fft.Coefficients(nil, samples)
	best, bestMag := 0, 0.0
	for i := 1; i < len(coeffs); i++ {
		if m := cmplx.Abs(coeffs[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	return fft.Freq(best) * sampleRate
}

func TestSquareWaveMiddleCPitch(t *testing.T) {
	var p PartialPair
	p.Init(false, false)
	p.InitSynth(Master, false, 0, 1)
	p.Deactivate(Slave)

	samples := make([]float64, sampleRate)
	for i := range samples {
		p.GenerateNextSample(Master, 0, 37133, 200<<18)
		samples[i] = float64(p.NextOutSample())
	}
	if f := dominantFrequency(t, samples); f < 259 || f > 264 {
		t.Fatalf("dominant frequency %.2f Hz, want about 261.6", f)
	}
}

func TestPCMOneShotDeactivates(t *testing.T) {
	pcm := make([]int16, 100)
	for i := range pcm {
		pcm[i] = int16(i * 100)
	}
	var p PartialPair
	p.Init(false, false)
	p.InitPCM(Master, pcm, uint32(len(pcm)), false)

	// pitch 20480 advances exactly one table entry per sample
	for i := 0; i < 99; i++ {
		p.GenerateNextSample(Master, 0, 20480, 0)
	}
	if !p.IsActive(Master) {
		t.Fatalf("PCM wave stopped early")
	}
	p.GenerateNextSample(Master, 0, 20480, 0)
	if p.IsActive(Master) {
		t.Fatalf("one-shot PCM wave still active past its end")
	}
}

func TestPCMLoopKeepsPlaying(t *testing.T) {
	pcm := []int16{1000, -1000, 2000, -2000}
	var p PartialPair
	p.Init(false, false)
	p.InitPCM(Master, pcm, uint32(len(pcm)), true)
	for i := 0; i < 1000; i++ {
		p.GenerateNextSample(Master, 0, 24576, 0)
	}
	if !p.IsActive(Master) {
		t.Fatalf("looped PCM wave deactivated")
	}
}

func TestRingModulationWithSilentSlaveIsSilent(t *testing.T) {
	var p PartialPair
	p.Init(true, false)
	p.InitSynth(Master, false, 0, 1)
	p.InitSynth(Slave, true, 0, 1)
	p.Deactivate(Slave)
	for i := 0; i < 1000; i++ {
		p.GenerateNextSample(Master, 0, 37133, 200<<18)
		p.GenerateNextSample(Slave, 0, 37133, 200<<18)
		if s := p.NextOutSample(); s != 0 {
			t.Fatalf("sample %d = %d, want silence from ring modulator", i, s)
		}
	}
}

func TestMixedRingModulationKeepsMaster(t *testing.T) {
	var ring, plain PartialPair
	ring.Init(true, true)
	ring.InitSynth(Master, false, 0, 1)
	ring.InitSynth(Slave, false, 0, 1)
	ring.Deactivate(Slave)
	plain.Init(false, false)
	plain.InitSynth(Master, false, 0, 1)
	plain.Deactivate(Slave)
	for i := 0; i < 1000; i++ {
		ring.GenerateNextSample(Master, 0, 37133, 200<<18)
		plain.GenerateNextSample(Master, 0, 37133, 200<<18)
		if a, b := ring.NextOutSample(), plain.NextOutSample(); a != b {
			t.Fatalf("sample %d: mixed ring output %d, plain %d", i, a, b)
		}
	}
}

func TestDistortedWrapsAt14Bits(t *testing.T) {
	if got := distorted(0x1fff); got != 0x1fff {
		t.Errorf("distorted(0x1fff) = %#x", got)
	}
	if got := distorted(0x2000); got != -0x2000 {
		t.Errorf("distorted(0x2000) = %d, want -8192", got)
	}
	if got := distorted(-1); got != -1 {
		t.Errorf("distorted(-1) = %d", got)
	}
}

func TestRingModulatedPCMSlaveIsNotInterpolated(t *testing.T) {
	master := []int16{32767, 32767, 32767, 32767}
	slave := []int16{16000, 16000, 16000, 16000}
	var p PartialPair
	p.Init(true, false)
	p.InitPCM(Master, master, uint32(len(master)), true)
	p.InitPCM(Slave, slave, uint32(len(slave)), true)

	// a pitch between table entries walks the interpolation factor
	var first int16
	for i := 0; i < 200; i++ {
		p.GenerateNextSample(Master, 0, 19000, 0)
		p.GenerateNextSample(Slave, 0, 19000, 0)
		s := p.NextOutSample()
		if i == 0 {
			first = s
			if s == 0 {
				t.Fatalf("ring product of two constant waves is silent")
			}
			continue
		}
		if s != first {
			t.Fatalf("sample %d = %d, want steady %d", i, s, first)
		}
	}
}

func TestResonanceUnderflowIsSilent(t *testing.T) {
	tb := tables.Get()
	g := waveGenerator{
		active:                true,
		resonanceSinePosition: 511 << 9,
		squareWavePosition:    511 << 9,
		cutoffVal:             maxCutoffValue,
	}
	raw := uint32(tb.LogSin9[511])<<2 + uint32(tb.LogSin9[511])<<2
	if raw >= 1<<12 {
		t.Fatalf("setup leaves %d, want less than 4096", raw)
	}
	g.generateNextResonanceWaveLogSample()
	if g.resonanceLogSample.LogValue != 65535 {
		t.Fatalf("resonance log value = %d, want 65535 (silence)", g.resonanceLogSample.LogValue)
	}
}
