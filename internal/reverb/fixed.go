package reverb

const fixedSilenceThreshold = 8

// WeirdMul multiplies sample by the 8-bit factor addMask the way the Boss
// chip does it: bit-serially, one arithmetic shift per factor bit, adding the
// shifted sample for each set bit. For negative samples the bit shifted out is
// carried back in on positions selected by carryMask, which produces the
// characteristic rounding of the hardware.
func WeirdMul(sample int32, addMask, carryMask uint8) int32 {
	var res int32
	for mask := uint8(0x80); mask != 0; mask >>= 1 {
		var carry int32
		if sample < 0 && mask&carryMask != 0 {
			carry = sample & 1
		}
		sample >>= 1
		if mask&addMask != 0 {
			res += sample + carry
		}
	}
	return res
}

type fixedAllpass struct {
	ringBuffer[int16]
}

func (f *fixedAllpass) process(in int32) int32 {
	out := int32(f.next())
	// store input - feedback / 2, return output + feedforward / 2
	f.buf[f.index] = clip16(in - out>>1)
	return out + int32(f.buf[f.index])>>1
}

type fixedComb struct {
	ringBuffer[int16]
	filterFactor   uint8
	feedbackFactor uint8
}

func (f *fixedComb) process(in int32) {
	last := int32(f.buf[f.index])
	filterIn := in + WeirdMul(int32(f.next()), f.feedbackFactor, 0xF0)
	f.buf[f.index] = clip16(WeirdMul(last, f.filterFactor, 0xC0) - filterIn)
}

// fixedEntrance is the entrance delay with a one-pole low-pass in front of
// the allpass chain.
type fixedEntrance struct {
	ringBuffer[int16]
	filterFactor uint8
	amp          uint8
}

func (f *fixedEntrance) process(in int32) {
	last := int32(f.buf[f.index])
	f.next()
	lpfOut := WeirdMul(last, f.filterFactor, 0xFF) + in
	f.buf[f.index] = clip16(WeirdMul(lpfOut, f.amp, 0xFF))
}

// fixedTapDelay is the single long comb of mode 3 with movable output taps.
// Feedback is read one sample ahead of the right tap.
type fixedTapDelay struct {
	ringBuffer[int16]
	filterFactor   uint8
	feedbackFactor uint8
	outL, outR     int
}

func (f *fixedTapDelay) process(in int32) {
	last := int32(f.buf[f.index])
	filterIn := in + WeirdMul(int32(f.outputAt(f.outR+mode3FeedbackDelay)), f.feedbackFactor, 0xF0)
	f.next()
	f.buf[f.index] = clip16(WeirdMul(last, f.filterFactor, 0xF0) - filterIn)
}

func (f *fixedTapDelay) left() int32 {
	return int32(f.outputAt(f.outL + processDelay + mode3AdditionalDelay))
}

func (f *fixedTapDelay) right() int32 {
	return int32(f.outputAt(f.outR + processDelay + mode3AdditionalDelay))
}

// fixedModel is the MT-32 reverb in 16-bit fixed point.
type fixedModel struct {
	mode int
	s    *settings

	allpasses []fixedAllpass
	entrance  fixedEntrance
	combs     []fixedComb
	tap       *fixedTapDelay

	time, level      uint8
	dryAmp, wetLevel uint8
	open             bool
}

func (m *fixedModel) Mode() int    { return m.mode }
func (m *fixedModel) IsOpen() bool { return m.open }

func (m *fixedModel) Open() error {
	s, err := settingsFor(m.mode, &mt32Settings)
	if err != nil {
		return err
	}
	m.Close()
	m.s = s
	if m.mode == ModeTapDelay {
		m.tap = &fixedTapDelay{
			ringBuffer:   newRingBuffer[int16](s.combSizes[0]),
			filterFactor: s.filterFactors[0],
		}
	} else {
		m.allpasses = make([]fixedAllpass, len(s.allpassSizes))
		for i, size := range s.allpassSizes {
			m.allpasses[i] = fixedAllpass{newRingBuffer[int16](size)}
		}
		m.entrance = fixedEntrance{
			ringBuffer:   newRingBuffer[int16](s.combSizes[0]),
			filterFactor: s.filterFactors[0],
			amp:          s.lpfAmp,
		}
		m.combs = make([]fixedComb, len(s.combSizes)-1)
		for i := range m.combs {
			m.combs[i] = fixedComb{
				ringBuffer:   newRingBuffer[int16](s.combSizes[i+1]),
				filterFactor: s.filterFactors[i+1],
			}
		}
	}
	m.open = true
	m.applyParameters()
	return nil
}

func (m *fixedModel) Close() {
	m.allpasses = nil
	m.combs = nil
	m.entrance = fixedEntrance{}
	m.tap = nil
	m.open = false
}

func (m *fixedModel) Mute() {
	if !m.open {
		return
	}
	for i := range m.allpasses {
		m.allpasses[i].mute()
	}
	m.entrance.mute()
	for i := range m.combs {
		m.combs[i].mute()
	}
	if m.tap != nil {
		m.tap.mute()
	}
}

func (m *fixedModel) SetParameters(time, level uint8) {
	m.time = time & 7
	m.level = level & 7
	if m.open {
		m.applyParameters()
	}
}

func (m *fixedModel) applyParameters() {
	s := m.s
	if m.tap != nil {
		m.tap.outL = s.outLPositions[m.time]
		m.tap.outR = s.outRPositions[m.time]
		fb := 0
		if m.level >= 3 && m.time >= 6 {
			fb = 1
		}
		m.tap.feedbackFactor = s.feedbackFactors[fb]
	} else {
		for i := range m.combs {
			m.combs[i].feedbackFactor = s.feedbackFactors[((i+1)<<3)+int(m.time)]
		}
	}
	if m.time == 0 && m.level == 0 {
		m.dryAmp, m.wetLevel = 0, 0
		return
	}
	m.dryAmp = s.dryAmps[m.level]
	m.wetLevel = s.wetLevels[m.level]
}

func mixCombs(o1, o2, o3 int32) int32 {
	return o1 + o1>>1 + o2 + o2>>1 + o3
}

func (m *fixedModel) Process(inL, inR, outL, outR []int16) {
	if !m.open {
		for i := range inL {
			if outL != nil {
				outL[i] = 0
			}
			if outR != nil {
				outR[i] = 0
			}
		}
		return
	}
	s := m.s
	for i := range inL {
		dry := int32(inL[i])>>1 + int32(inR[i])>>1
		dry = WeirdMul(dry, m.dryAmp, 0xFF)

		if m.tap != nil {
			m.tap.process(dry)
			if outL != nil {
				outL[i] = clip16(WeirdMul(m.tap.left(), m.wetLevel, 0xFF))
			}
			if outR != nil {
				outR[i] = clip16(WeirdMul(m.tap.right(), m.wetLevel, 0xFF))
			}
			continue
		}

		// read the entrance tail before it is overwritten
		link := int32(m.entrance.outputAt(s.combSizes[0] - 1))
		m.entrance.process(dry)
		for j := range m.allpasses {
			link = m.allpasses[j].process(link)
		}

		outL1 := int32(m.combs[0].outputAt(s.outLPositions[0] - 1))
		for j := range m.combs {
			m.combs[j].process(link)
		}

		if outL != nil {
			outL2 := int32(m.combs[1].outputAt(s.outLPositions[1]))
			outL3 := int32(m.combs[2].outputAt(s.outLPositions[2]))
			outL[i] = clip16(WeirdMul(int32(clip16(mixCombs(outL1, outL2, outL3))), m.wetLevel, 0xFF))
		}
		if outR != nil {
			outR1 := int32(m.combs[0].outputAt(s.outRPositions[0]))
			outR2 := int32(m.combs[1].outputAt(s.outRPositions[1]))
			outR3 := int32(m.combs[2].outputAt(s.outRPositions[2]))
			outR[i] = clip16(WeirdMul(int32(clip16(mixCombs(outR1, outR2, outR3))), m.wetLevel, 0xFF))
		}
	}
}

func (m *fixedModel) IsActive() bool {
	if !m.open {
		return false
	}
	for i := range m.allpasses {
		if !m.allpasses[i].isEmpty(fixedSilenceThreshold) {
			return true
		}
	}
	if m.tap != nil {
		return !m.tap.isEmpty(fixedSilenceThreshold)
	}
	if !m.entrance.isEmpty(fixedSilenceThreshold) {
		return true
	}
	for i := range m.combs {
		if !m.combs[i].isEmpty(fixedSilenceThreshold) {
			return true
		}
	}
	return false
}
