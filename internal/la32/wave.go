package la32

import "github.com/cbegin/mt32emu-go/internal/tables"

// LogSample is a sample in the LA32 logarithmic domain: a 16-bit attenuation
// (larger is quieter) and a sign.
type LogSample struct {
	LogValue uint16
	Negative bool
}

var silence = LogSample{LogValue: 65535}

const (
	sineSegmentRelativeLength = 1 << 18

	middleCutoffValue                  = 128 << 18
	resonanceDecayThresholdCutoffValue = 144 << 18
	maxCutoffValue                     = 240 << 18
)

type wavePhase int

const (
	positiveRisingSineSegment wavePhase = iota
	positiveLinearSegment
	positiveFallingSineSegment
	negativeFallingSineSegment
	negativeLinearSegment
	negativeRisingSineSegment
)

type resonancePhase int

const (
	positiveRisingResonanceSineSegment resonancePhase = iota
	positiveFallingResonanceSineSegment
	negativeFallingResonanceSineSegment
	negativeRisingResonanceSineSegment
)

// Unlog converts a log sample back to the linear domain.
func Unlog(s LogSample) int16 {
	intLogValue := s.LogValue >> 12
	fracLogValue := s.LogValue & 4095
	sample := int16(tables.Get().InterpolateExp(fracLogValue) >> intLogValue)
	if s.Negative {
		return -sample
	}
	return sample
}

// AddLogSamples multiplies two samples in the log domain (adds attenuations,
// combines signs), saturating at full attenuation.
func AddLogSamples(a *LogSample, b LogSample) {
	v := uint32(a.LogValue) + uint32(b.LogValue)
	if v < 65536 {
		a.LogValue = uint16(v)
	} else {
		a.LogValue = 65535
	}
	a.Negative = a.Negative != b.Negative
}

func clampLog(v uint32) uint16 {
	if v < 65536 {
		return uint16(v)
	}
	return 65535
}

// waveGenerator produces log samples for one partial: either the synthesised
// square/sawtooth with its resonance sine, or PCM playback.
type waveGenerator struct {
	active bool

	// synth state
	sawtoothWaveform bool
	pulseWidth       uint8
	resonance        uint8

	amp       uint32
	pitch     uint16
	cutoffVal uint32

	// 20-bit position within the wave (PCM: 8 fractional bits of the table index)
	wavePosition uint32

	squareWavePosition    uint32
	phase                 wavePhase
	resonanceSinePosition uint32
	resonancePhase        resonancePhase

	resonanceAmpSubtraction uint32
	resAmpDecayFactor       uint32

	squareLogSample    LogSample
	resonanceLogSample LogSample

	// PCM state
	pcm                    []int16
	pcmWaveLength          uint32
	pcmWaveLooped          bool
	pcmWaveInterpolated    bool
	pcmInterpolationFactor uint32
	firstPCMLogSample      LogSample
	secondPCMLogSample     LogSample
}

func (g *waveGenerator) initSynth(sawtooth bool, pulseWidth, resonance uint8) {
	g.sawtoothWaveform = sawtooth
	g.pulseWidth = pulseWidth
	g.resonance = resonance

	g.wavePosition = 0
	g.squareWavePosition = 0
	g.phase = positiveRisingSineSegment
	g.resonanceSinePosition = 0
	g.resonancePhase = positiveRisingResonanceSineSegment
	g.resonanceAmpSubtraction = uint32(32-int32(resonance)) << 10
	g.resAmpDecayFactor = uint32(tables.Get().ResAmpDecayFactor[resonance>>2]) << 2

	g.pcm = nil
	g.active = true
}

func (g *waveGenerator) initPCM(pcm []int16, length uint32, looped, interpolated bool) {
	if length > uint32(len(pcm)) {
		length = uint32(len(pcm))
	}
	g.pcm = pcm
	g.pcmWaveLength = length
	g.pcmWaveLooped = looped
	g.pcmWaveInterpolated = interpolated
	g.wavePosition = 0
	g.active = length > 0
}

func (g *waveGenerator) deactivate()     { g.active = false }
func (g *waveGenerator) isActive() bool  { return g.active }
func (g *waveGenerator) isPCMWave() bool { return g.pcm != nil }

func (g *waveGenerator) generateNextSample(amp uint32, pitch uint16, cutoffVal uint32) {
	if !g.active {
		return
	}
	g.amp = amp
	g.pitch = pitch

	if g.isPCMWave() {
		g.generateNextPCMWaveLogSamples()
		return
	}

	// 240 is the highest cutoff the chip honours
	if cutoffVal > maxCutoffValue {
		cutoffVal = maxCutoffValue
	}
	g.cutoffVal = cutoffVal

	g.generateNextSquareWaveLogSample()
	g.generateNextResonanceWaveLogSample()
	if g.sawtoothWaveform {
		cosine := g.generateNextSawtoothCosineLogSample()
		AddLogSamples(&g.squareLogSample, cosine)
		AddLogSamples(&g.resonanceLogSample, cosine)
	}
	g.advancePosition()
}

func (g *waveGenerator) sampleStep() uint32 {
	// EXP2F(pitch / 4096.0f + 4.0f) / 32000.0f scaled to the 20-bit position
	tb := tables.Get()
	step := uint32(tb.InterpolateExp(^g.pitch & 4095))
	step <<= g.pitch >> 12
	step >>= 8
	step &^= 1
	return step
}

func (g *waveGenerator) resonanceWaveLengthFactor(effectiveCutoffValue uint32) uint32 {
	// EXP2F(12.0f + effectiveCutoffValue / 4096.0f)
	f := uint32(tables.Get().InterpolateExp(uint16(^effectiveCutoffValue & 4095)))
	return f << (effectiveCutoffValue >> 12)
}

func (g *waveGenerator) highLinearLength(effectiveCutoffValue uint32) uint32 {
	var effectivePulseWidthValue uint32
	if g.pulseWidth > 128 {
		effectivePulseWidthValue = uint32(g.pulseWidth-128) << 6
	}
	// EXP2F(19.0f - pw / 4096.0f + cutoff / 4096.0f) - 2 * SINE_SEGMENT_RELATIVE_LENGTH
	if effectivePulseWidthValue >= effectiveCutoffValue {
		return 0
	}
	expArg := effectiveCutoffValue - effectivePulseWidthValue
	l := uint32(tables.Get().InterpolateExp(uint16(^expArg & 4095)))
	l <<= 7 + (expArg >> 12)
	return l - 2*sineSegmentRelativeLength
}

func (g *waveGenerator) computePositions(highLinearLength, lowLinearLength, resonanceWaveLengthFactor uint32) {
	// 12-bit multiplication
	g.squareWavePosition = (g.wavePosition >> 8) * (resonanceWaveLengthFactor >> 4)
	g.resonanceSinePosition = g.squareWavePosition
	if g.squareWavePosition < sineSegmentRelativeLength {
		g.phase = positiveRisingSineSegment
		return
	}
	g.squareWavePosition -= sineSegmentRelativeLength
	if g.squareWavePosition < highLinearLength {
		g.phase = positiveLinearSegment
		return
	}
	g.squareWavePosition -= highLinearLength
	if g.squareWavePosition < sineSegmentRelativeLength {
		g.phase = positiveFallingSineSegment
		return
	}
	g.squareWavePosition -= sineSegmentRelativeLength
	g.resonanceSinePosition = g.squareWavePosition
	if g.squareWavePosition < sineSegmentRelativeLength {
		g.phase = negativeFallingSineSegment
		return
	}
	g.squareWavePosition -= sineSegmentRelativeLength
	if g.squareWavePosition < lowLinearLength {
		g.phase = negativeLinearSegment
		return
	}
	g.squareWavePosition -= lowLinearLength
	g.phase = negativeRisingSineSegment
}

func (g *waveGenerator) advancePosition() {
	g.wavePosition += g.sampleStep()
	g.wavePosition %= 4 * sineSegmentRelativeLength

	var effectiveCutoffValue uint32
	if g.cutoffVal > middleCutoffValue {
		effectiveCutoffValue = (g.cutoffVal - middleCutoffValue) >> 10
	}
	resonanceWaveLengthFactor := g.resonanceWaveLengthFactor(effectiveCutoffValue)
	high := g.highLinearLength(effectiveCutoffValue)
	low := (resonanceWaveLengthFactor << 8) - 4*sineSegmentRelativeLength - high
	g.computePositions(high, low, resonanceWaveLengthFactor)

	rp := g.resonanceSinePosition >> 18
	if g.phase > positiveFallingSineSegment {
		rp += 2
	}
	g.resonancePhase = resonancePhase(rp & 3)
}

func (g *waveGenerator) generateNextSquareWaveLogSample() {
	tb := tables.Get()
	var logSampleValue uint32
	switch g.phase {
	case positiveRisingSineSegment, negativeFallingSineSegment:
		logSampleValue = uint32(tb.LogSin9[(g.squareWavePosition>>9)&511])
	case positiveFallingSineSegment, negativeRisingSineSegment:
		logSampleValue = uint32(tb.LogSin9[^(g.squareWavePosition>>9)&511])
	default:
		logSampleValue = 0
	}
	logSampleValue <<= 2
	logSampleValue += g.amp >> 10
	if g.cutoffVal < middleCutoffValue {
		logSampleValue += (middleCutoffValue - g.cutoffVal) >> 9
	}
	g.squareLogSample.LogValue = clampLog(logSampleValue)
	g.squareLogSample.Negative = g.phase >= negativeFallingSineSegment
}

func (g *waveGenerator) generateNextResonanceWaveLogSample() {
	tb := tables.Get()
	var logSampleValue uint32
	if g.resonancePhase == positiveFallingResonanceSineSegment || g.resonancePhase == negativeRisingResonanceSineSegment {
		logSampleValue = uint32(tb.LogSin9[^(g.resonanceSinePosition>>9)&511])
	} else {
		logSampleValue = uint32(tb.LogSin9[(g.resonanceSinePosition>>9)&511])
	}
	logSampleValue <<= 2
	logSampleValue += g.amp >> 10

	// the resonance sine decays slightly faster in the negative half
	decayFactor := g.resAmpDecayFactor
	if g.phase >= negativeFallingSineSegment {
		decayFactor++
	}
	logSampleValue += g.resonanceAmpSubtraction + (((g.resonanceSinePosition >> 4) * decayFactor) >> 8)

	// window the resonance segment so the wave has no breaks
	switch g.phase {
	case positiveRisingSineSegment, negativeFallingSineSegment:
		logSampleValue += uint32(tb.LogSin9[(g.squareWavePosition>>9)&511]) << 2
	case positiveFallingSineSegment, negativeRisingSineSegment:
		logSampleValue += uint32(tb.LogSin9[^(g.squareWavePosition>>9)&511]) << 3
	}

	if g.cutoffVal < middleCutoffValue {
		// exponential decay below the cutoff middle point
		logSampleValue += 31743 + ((middleCutoffValue - g.cutoffVal) >> 9)
	} else if g.cutoffVal < resonanceDecayThresholdCutoffValue {
		// sinusoidal decay up to the threshold
		sineIx := (g.cutoffVal - middleCutoffValue) >> 13
		logSampleValue += uint32(tb.LogSin9[sineIx]) << 2
	}

	// matches the resonance amplitude seen on captures; an underflow is silence
	if logSampleValue >= 1<<12 {
		logSampleValue -= 1 << 12
	} else {
		logSampleValue = 65535
	}

	g.resonanceLogSample.LogValue = clampLog(logSampleValue)
	g.resonanceLogSample.Negative = g.resonancePhase >= negativeFallingResonanceSineSegment
}

func (g *waveGenerator) generateNextSawtoothCosineLogSample() LogSample {
	tb := tables.Get()
	pos := g.wavePosition + (1 << 18)
	var s LogSample
	if pos&(1<<18) != 0 {
		s.LogValue = tb.LogSin9[^(pos>>9)&511]
	} else {
		s.LogValue = tb.LogSin9[(pos>>9)&511]
	}
	s.LogValue <<= 2
	s.Negative = pos&(1<<19) != 0
	return s
}

func (g *waveGenerator) pcmSampleToLogSample(pcmSample int16) LogSample {
	logSampleValue := (32787 - uint32(uint16(pcmSample)&32767)) << 1
	logSampleValue += g.amp >> 10
	return LogSample{LogValue: clampLog(logSampleValue), Negative: pcmSample < 0}
}

func (g *waveGenerator) generateNextPCMWaveLogSamples() {
	// the ladder seen in PCM captures at low pitches comes from this 7-bit factor
	g.pcmInterpolationFactor = (g.wavePosition & 255) >> 1
	ix := g.wavePosition >> 8
	g.firstPCMLogSample = g.pcmSampleToLogSample(g.pcm[ix])
	if g.pcmWaveInterpolated {
		ix++
		if ix < g.pcmWaveLength {
			g.secondPCMLogSample = g.pcmSampleToLogSample(g.pcm[ix])
		} else if g.pcmWaveLooped {
			ix -= g.pcmWaveLength
			g.secondPCMLogSample = g.pcmSampleToLogSample(g.pcm[ix])
		} else {
			g.secondPCMLogSample = silence
		}
	} else {
		g.secondPCMLogSample = silence
	}

	// EXP2F(pitch / 4096.0f + 3.0f) with 8 fractional bits of position
	step := uint32(tables.Get().InterpolateExp(^g.pitch & 4095))
	step <<= g.pitch >> 12
	step >>= 9
	g.wavePosition += step
	if g.wavePosition >= g.pcmWaveLength<<8 {
		if g.pcmWaveLooped {
			g.wavePosition -= g.pcmWaveLength << 8
			if g.wavePosition >= g.pcmWaveLength<<8 {
				g.wavePosition %= g.pcmWaveLength << 8
			}
		} else {
			g.deactivate()
		}
	}
}

func (g *waveGenerator) outputLogSample(first bool) LogSample {
	if !g.active {
		return silence
	}
	if g.isPCMWave() {
		if first {
			return g.firstPCMLogSample
		}
		return g.secondPCMLogSample
	}
	if first {
		return g.squareLogSample
	}
	return g.resonanceLogSample
}
