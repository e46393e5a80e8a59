package synth

import "math"

// convertLA32Output turns raw LA32 samples into DAC input samples in place.
func convertLA32Output(mode DACInputMode, buf []int16) {
	switch mode {
	case DACNice:
		// doubled with saturation; the LA32 only produces 15 significant bits
		for i, x := range buf {
			buf[i] = clip16(int32(x) << 1)
		}
	case DACGeneration1:
		for i, x := range buf {
			buf[i] = int16(uint16(x)&0x8000 | uint16(x)<<1&0x7FFE)
		}
	case DACGeneration2:
		for i, x := range buf {
			buf[i] = int16(uint16(x)&0x8000 | uint16(x)<<1&0x7FFE | uint16(x)>>14&1)
		}
	}
}

// convertReverbOutput fixes up the reverb wet signal for the DAC. Only the
// first generation boards shuffle the reverb bits too.
func convertReverbOutput(mode DACInputMode, buf []int16) {
	if mode != DACGeneration1 {
		return
	}
	for i, x := range buf {
		buf[i] = int16(uint16(x)&0x8000 | uint16(x)<<1&0x7FFE)
	}
}

// gainFactor converts a float gain to 8.8 fixed point.
func gainFactor(gain float32) int32 {
	if gain < 0 {
		gain = 0
	}
	g := math.Round(float64(gain) * 256)
	if g > math.MaxInt32>>16 {
		g = math.MaxInt32 >> 16
	}
	return int32(g)
}

// biquad is a direct form I second order section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// newLowPass returns a Butterworth style low pass at cutoff Hz.
func newLowPass(cutoff, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / SampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// The analog output stage of the hardware rolls off above roughly 11kHz.
const (
	analogCutoff = 11000
	analogQ      = 0.7071
)

// analogStage mixes the DAC streams into the final output.
type analogStage struct {
	mode        AnalogOutputMode
	synthGain   int32
	reverbGain  int32
	left, right biquad
}

func newAnalogStage(mode AnalogOutputMode) *analogStage {
	a := &analogStage{mode: mode, synthGain: 256, reverbGain: 256}
	a.left = newLowPass(analogCutoff, analogQ)
	a.right = newLowPass(analogCutoff, analogQ)
	return a
}

func (a *analogStage) mix(nonReverb, dry, wet int16, gainDry, gainWet int32) int32 {
	return ((int32(nonReverb)+int32(dry))*gainDry)>>8 + (int32(wet)*gainWet)>>8
}

// process mixes one channel of the streams into out.
func (a *analogStage) process(out []int16, nonReverb, dry, wet []int16, filter *biquad) {
	for i := range out {
		v := a.mix(nonReverb[i], dry[i], wet[i], a.synthGain, a.reverbGain)
		if a.mode == AnalogCoarse {
			v = int32(math.Round(filter.process(float64(v))))
		}
		out[i] = clip16(v)
	}
}

func (a *analogStage) reset() {
	a.left.reset()
	a.right.reset()
}
